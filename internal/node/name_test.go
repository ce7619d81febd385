package node

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateNameAcceptsIdentifiers(t *testing.T) {
	for _, n := range []string{"a", "node1", "my-node", "my_node", "Node-9_x"} {
		assert.NoError(t, ValidateName(n, "node"), n)
	}
}

func TestValidateNameRejectsBadIdentifiers(t *testing.T) {
	for _, n := range []string{"", "1node", "-node", "has space", "has.dot", "has/slash"} {
		assert.Error(t, ValidateName(n, "node"), n)
	}
}

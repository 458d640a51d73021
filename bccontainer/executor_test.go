package bccontainer_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bcpartner/go-ingestion/bccontainer"
)

func TestDockerExecutorValidation(t *testing.T) {
	executor := bccontainer.NewDockerExecutor()

	_, err := executor.Run(context.Background(), "", "Get-Date")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "container name")
}

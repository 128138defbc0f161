package fetcher

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamCSV(t *testing.T) {
	input := "code,name\nKEN, Kenya \nNGA,Nigeria\n"
	headerCh := make(chan []string, 1)

	rowCh, errCh := StreamCSV(context.Background(), strings.NewReader(input), CSVOptions{
		HasHeader: true,
		HeaderCh:  headerCh,
		TrimSpace: true,
	})

	var rows [][]string
	for row := range rowCh {
		rows = append(rows, row)
	}
	require.NoError(t, <-errCh)

	assert.Equal(t, []string{"code", "name"}, <-headerCh)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"KEN", "Kenya"}, rows[0])
}

func TestStreamCSV_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rowCh, errCh := StreamCSV(ctx, strings.NewReader("a,b\n1,2\n"), CSVOptions{})
	for range rowCh {
	}
	assert.Error(t, <-errCh)
}

package statement

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/ayo6706/ebanking-core/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPDFRenderer_ProducesPDF(t *testing.T) {
	doc := models.StatementDocument{
		Period:        "February 2024",
		AccountNumber: "0123456789",
		HolderName:    "Ada Obi",
		Rows: []models.StatementRow{
			{Reference: "abc123def456", Date: "2024-02-29T23:59:30", Amount: "12.50", Sender: "Ada Obi", Receiver: "Ben", Description: "rent"},
			{Reference: "zzz999yyy888", Date: "2024-02-01T00:00:00", Amount: "3.00", Sender: "Ben", Receiver: "Ada Obi", Description: strings.Repeat("long narration ", 20)},
		},
	}

	out, err := NewPDFRenderer("").Render(context.Background(), doc)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}

func TestPDFRenderer_ManyRowsPaginate(t *testing.T) {
	doc := models.StatementDocument{Period: "2024", AccountNumber: "0123456789"}
	for i := 0; i < 120; i++ {
		doc.Rows = append(doc.Rows, models.StatementRow{Reference: "r", Date: "d", Amount: "1.00", Sender: "s", Receiver: "r"})
	}
	out, err := NewPDFRenderer("Yearly Statement").Render(context.Background(), doc)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}

func TestPDFRenderer_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewPDFRenderer("").Render(ctx, models.StatementDocument{})
	require.ErrorIs(t, err, context.Canceled)
}

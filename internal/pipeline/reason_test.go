package pipeline

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/JTDingwall/herringspawnprediction/internal/domain"
	"github.com/JTDingwall/herringspawnprediction/internal/observability"
)

func TestDropReason(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"bad start date", domain.ErrBadStartDate, observability.ReasonBadDate},
		{"wrapped bad start date", fmt.Errorf("row 7: %w", domain.ErrBadStartDate), observability.ReasonBadDate},
		{"missing coordinates", domain.ErrMissingCoordinates, observability.ReasonMissingCoords},
		{"wrapped missing coordinates", fmt.Errorf("row 9: %w", domain.ErrMissingCoordinates), observability.ReasonMissingCoords},
		{"unclassified error counts as other", errors.New("mangled row"), observability.ReasonOther},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, dropReason(tt.err))
		})
	}
}

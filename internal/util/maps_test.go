package util_test

import (
	"testing"

	"github.com/DragonOfMath/discord.io/internal/util"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

func TestGetOne(t *testing.T) {
	tests := []struct {
		name    string
		input   map[string]string
		want    string
		wantErr error
	}{
		{name: "single element", input: map[string]string{"general": "100"}, want: "100"},
		{name: "multiple elements", input: map[string]string{"a": "1", "b": "2"}, wantErr: util.ErrMultipleElements},
		{name: "no elements", input: map[string]string{}, wantErr: util.ErrNoElement},
		{name: "nil map", wantErr: util.ErrNoElement},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := util.GetOne(tt.input)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFilter(t *testing.T) {
	in := map[int]string{1: "voice", 2: "text", 3: "voice"}
	got := util.Filter(in, func(_ int, kind string) bool { return kind == "voice" })

	want := map[int]string{1: "voice", 3: "voice"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Filter() mismatch (-want +got):\n%s", diff)
	}
}

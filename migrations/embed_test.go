package migrations

import (
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestList(t *testing.T) {
	files, err := List()
	require.NoError(t, err)
	require.NotEmpty(t, files, "at least one migration pair must be embedded")

	for _, file := range files {
		assert.Regexp(t, `^\d{3}_[a-zA-Z0-9_]+\.(up|down)\.sql$`, file)
	}
}

func TestValidate(t *testing.T) {
	require.NoError(t, Validate())
}

func TestParse(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		want     *Info
		wantErr  bool
	}{
		{
			name:     "valid up migration",
			filename: "001_create_processed_events.up.sql",
			want: &Info{
				Sequence:  1,
				Name:      "create_processed_events",
				Direction: "up",
				Filename:  "001_create_processed_events.up.sql",
			},
		},
		{
			name:     "valid down migration",
			filename: "001_create_processed_events.down.sql",
			want: &Info{
				Sequence:  1,
				Name:      "create_processed_events",
				Direction: "down",
				Filename:  "001_create_processed_events.down.sql",
			},
		},
		{
			name:     "missing sequence prefix",
			filename: "create_processed_events.up.sql",
			wantErr:  true,
		},
		{
			name:     "wrong extension",
			filename: "001_create_processed_events.up.txt",
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.filename)
			if tt.wantErr {
				require.Error(t, err)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFS_ContainsListedFiles(t *testing.T) {
	files, err := List()
	require.NoError(t, err)

	for _, file := range files {
		content, err := fs.ReadFile(FS(), file)
		require.NoError(t, err)
		assert.NotEmpty(t, content)
	}
}

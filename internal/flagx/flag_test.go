package flagx

import (
	"os"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilterArgs(t *testing.T) {
	tests := []struct {
		name         string
		args         []string
		allowedFlags []string
		want         []string
	}{
		{
			name:         "keeps only the owned flag and its value",
			args:         []string{"-c", "stormdrive.json", "-a", ":8080"},
			allowedFlags: []string{"-c", "--config"},
			want:         []string{"-c", "stormdrive.json"},
		},
		{
			name:         "equals spelling survives",
			args:         []string{"--config=server.json", "-d", "postgres://localhost/stormdrive"},
			allowedFlags: []string{"-c", "--config"},
			want:         []string{"--config=server.json"},
		},
		{
			name:         "short and long spellings keep their order",
			args:         []string{"--config=first.json", "-c", "second.json", "-g", "/var/lib/stormdrive"},
			allowedFlags: []string{"-c", "--config"},
			want:         []string{"--config=first.json", "-c", "second.json"},
		},
		{
			name:         "foreign flags and positionals are dropped",
			args:         []string{"-m", "65536", "--backend=s3", "migrate"},
			allowedFlags: []string{"-c", "--config"},
			want:         []string{},
		},
		{
			name:         "trailing flag without a value is kept bare",
			args:         []string{"-c"},
			allowedFlags: []string{"-c", "--config"},
			want:         []string{"-c"},
		},
		{
			name:         "next token starting with a dash is not a value",
			args:         []string{"-c", "-verbose"},
			allowedFlags: []string{"-c", "--config"},
			want:         []string{"-c"},
		},
		{
			name:         "equals form may carry a dash-prefixed value",
			args:         []string{"--config=--odd.json"},
			allowedFlags: []string{"--config"},
			want:         []string{"--config=--odd.json"},
		},
		{
			name:         "several owned flags pass through together",
			args:         []string{"-a", "localhost:8080", "-g", "/srv/chunks", "--other", "x"},
			allowedFlags: []string{"-a", "-g"},
			want:         []string{"-a", "localhost:8080", "-g", "/srv/chunks"},
		},
		{
			name:         "no args",
			args:         []string{},
			allowedFlags: []string{"-c", "--config"},
			want:         []string{},
		},
		{
			name:         "absolute path value stays a single token",
			args:         []string{"-c", "/etc/stormdrive/server.json"},
			allowedFlags: []string{"-c"},
			want:         []string{"-c", "/etc/stormdrive/server.json"},
		},
		{
			name:         "repeated flag keeps every occurrence",
			args:         []string{"-c", "base.json", "-c", "override.json"},
			allowedFlags: []string{"-c"},
			want:         []string{"-c", "base.json", "-c", "override.json"},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got := FilterArgs(tt.args, tt.allowedFlags)
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("FilterArgs() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func Test_JsonConfigFlags(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	t.Run("short flag", func(t *testing.T) {
		os.Args = []string{"stormdrive-server", "-c", "/etc/stormdrive/dev.json"}
		assert.Equal(t, "/etc/stormdrive/dev.json", JsonConfigFlags())
	})

	t.Run("long flag", func(t *testing.T) {
		os.Args = []string{"stormdrive-server", "-config", "/etc/stormdrive/prod.json"}
		assert.Equal(t, "/etc/stormdrive/prod.json", JsonConfigFlags())
	})

	t.Run("no config flag given", func(t *testing.T) {
		os.Args = []string{"stormdrive-server", "-a", ":8080", "-g", "/srv/chunks"}
		assert.Empty(t, JsonConfigFlags())
	})

	t.Run("later flag wins", func(t *testing.T) {
		os.Args = []string{"stormdrive-server", "-c", "/etc/a.json", "-config", "/etc/b.json"}
		assert.Equal(t, "/etc/b.json", JsonConfigFlags())
	})
}

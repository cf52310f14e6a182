package source

import "testing"

func TestNewAutoSourceSelectsDelegateByScheme(t *testing.T) {
	cases := []struct {
		path string
		want string
	}{
		{"http://example.com/releases", "*source.HttpSource"},
		{"https://example.com/releases", "*source.HttpSource"},
		{"/var/releases", "*source.FileSource"},
		{"C:\\releases", "*source.FileSource"},
	}
	for _, c := range cases {
		s := NewAutoSource(c.path)
		switch s.delegate.(type) {
		case *HttpSource:
			if c.want != "*source.HttpSource" {
				t.Errorf("NewAutoSource(%q) delegated to HttpSource, want FileSource", c.path)
			}
		case *FileSource:
			if c.want != "*source.FileSource" {
				t.Errorf("NewAutoSource(%q) delegated to FileSource, want HttpSource", c.path)
			}
		default:
			t.Errorf("NewAutoSource(%q) delegated to unexpected type %T", c.path, s.delegate)
		}
	}
}

func TestAutoSourceCloneKeepsDelegateType(t *testing.T) {
	s := NewAutoSource("https://example.com/releases")
	clone := s.Clone().(*AutoSource)
	if _, ok := clone.delegate.(*HttpSource); !ok {
		t.Fatalf("cloned delegate type = %T, want *HttpSource", clone.delegate)
	}
}

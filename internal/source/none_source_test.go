package source

import "testing"

func TestNoneSourceAlwaysErrors(t *testing.T) {
	var s NoneSource

	if _, err := s.GetReleaseFeed(nil, "stable", nil); err == nil {
		t.Fatal("expected GetReleaseFeed to error")
	}
	if err := s.DownloadReleaseEntry(nil, nil, "", nil); err == nil {
		t.Fatal("expected DownloadReleaseEntry to error")
	}
	if _, ok := s.Clone().(NoneSource); !ok {
		t.Fatal("Clone() should return a NoneSource")
	}
}

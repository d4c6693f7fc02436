package build

import "testing"

func TestNewBuildFallsBackToVCS(t *testing.T) {
	b := newBuild("", "", "dev", "", vcs{revision: "abc123", time: "2024-05-01T10:00:00Z", modified: true})

	if b.Commit != "abc123" || !b.Modified || b.Date.Year() != 2024 {
		t.Fatalf("build = %+v", b)
	}
	if b.CommitURL != "" || b.ReleaseURL != "" {
		t.Fatalf("urls without repo: %+v", b)
	}
}

func TestNewBuildLinkerValuesWin(t *testing.T) {
	b := newBuild("def456", "", "v1.2.0", "https://github.com/ItsNotGoodName/csdwin", vcs{revision: "abc123"})

	if b.Commit != "def456" {
		t.Fatalf("commit = %q", b.Commit)
	}
	if b.CommitURL != "https://github.com/ItsNotGoodName/csdwin/tree/def456" {
		t.Fatalf("commit url = %q", b.CommitURL)
	}
	if b.ReleaseURL != "https://github.com/ItsNotGoodName/csdwin/releases/tag/v1.2.0" {
		t.Fatalf("release url = %q", b.ReleaseURL)
	}
}

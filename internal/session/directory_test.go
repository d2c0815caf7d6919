package session

import "testing"

func TestModelDirectory(t *testing.T) {
	t.Run("populate selects first", func(t *testing.T) {
		var d ModelDirectory
		d.populate([]string{"alpha", "beta"})
		if d.Selected() != "alpha" {
			t.Errorf("Selected = %q", d.Selected())
		}
		if !d.fetched {
			t.Error("fetched = false after a populated fetch")
		}
		got := d.Models()
		if len(got) != 2 || got[1] != "beta" {
			t.Errorf("Models = %v", got)
		}
	})

	t.Run("empty fetch stays retryable", func(t *testing.T) {
		var d ModelDirectory
		d.populate(nil)
		if d.Selected() != "" || d.fetched {
			t.Errorf("selected %q fetched %v", d.Selected(), d.fetched)
		}
	})

	t.Run("select ignores empty id", func(t *testing.T) {
		var d ModelDirectory
		d.populate([]string{"alpha", "beta"})
		d.Select("")
		if d.Selected() != "alpha" {
			t.Errorf("Selected = %q", d.Selected())
		}
		d.Select("beta")
		if d.Selected() != "beta" {
			t.Errorf("Selected = %q", d.Selected())
		}
	})

	t.Run("models snapshot is a copy", func(t *testing.T) {
		var d ModelDirectory
		d.populate([]string{"alpha"})
		d.Models()[0] = "mutated"
		if d.Models()[0] != "alpha" {
			t.Error("snapshot aliases directory state")
		}
	})
}

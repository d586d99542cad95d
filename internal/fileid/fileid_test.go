package fileid

import "testing"

func TestImageUnitID_Deterministic(t *testing.T) {
	id1 := ImageUnitID("/images/cat.jpg")
	id2 := ImageUnitID("/images/cat.jpg")
	if id1 != id2 {
		t.Errorf("same path should give same ID: %q vs %q", id1, id2)
	}
	if len(id1) < 10 {
		t.Errorf("ID too short: %q", id1)
	}
	if id1[:len(imagePrefix)] != imagePrefix {
		t.Errorf("ID should have prefix %q: got %q", imagePrefix, id1)
	}
}

func TestImageUnitID_DifferentPaths(t *testing.T) {
	if ImageUnitID("/images/cat.jpg") == ImageUnitID("/images/dog.jpg") {
		t.Error("different paths should give different IDs")
	}
}

func TestImageUnitID_Normalized(t *testing.T) {
	id1 := ImageUnitID("/images/cat.jpg")
	id2 := ImageUnitID("/images/./cat.jpg")
	id3 := ImageUnitID("/images//cat.jpg")
	if id1 != id2 || id1 != id3 {
		t.Errorf("equivalent paths should normalize to one ID: %q %q %q", id1, id2, id3)
	}
}

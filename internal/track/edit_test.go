package track

import (
	"testing"

	"mp4engine/internal/box"
	"mp4engine/internal/errs"
)

func TestClassifyEditNone(t *testing.T) {
	r, err := classifyEdit(nil)
	if err != nil {
		t.Fatalf("classifyEdit(nil): %v", err)
	}
	if r.Shape != EditNone {
		t.Fatalf("Shape = %v, want EditNone", r.Shape)
	}
}

func TestClassifyEditDwell(t *testing.T) {
	list := &box.EditList{Entries: []box.EditEntry{
		{SegmentDuration: 4500, MediaTime: -1},
	}}
	r, err := classifyEdit(list)
	if err != nil {
		t.Fatalf("classifyEdit: %v", err)
	}
	if r.Shape != EditDwell || r.DwellDuration != 4500 {
		t.Fatalf("got %+v, want Shape=EditDwell DwellDuration=4500", r)
	}
}

func TestClassifyEditShift(t *testing.T) {
	list := &box.EditList{Entries: []box.EditEntry{
		{SegmentDuration: 90000, MediaTime: 1024, MediaRateInt: 1},
	}}
	r, err := classifyEdit(list)
	if err != nil {
		t.Fatalf("classifyEdit: %v", err)
	}
	if r.Shape != EditShift || r.MediaTimeShift != 1024 {
		t.Fatalf("got %+v, want Shape=EditShift MediaTimeShift=1024", r)
	}
}

func TestClassifyEditDwellShift(t *testing.T) {
	list := &box.EditList{Entries: []box.EditEntry{
		{SegmentDuration: 4500, MediaTime: -1},
		{SegmentDuration: 90000, MediaTime: 1024, MediaRateInt: 1},
	}}
	r, err := classifyEdit(list)
	if err != nil {
		t.Fatalf("classifyEdit: %v", err)
	}
	if r.Shape != EditDwellShift || r.DwellDuration != 4500 || r.MediaTimeShift != 1024 {
		t.Fatalf("got %+v, want Shape=EditDwellShift DwellDuration=4500 MediaTimeShift=1024", r)
	}
}

func TestClassifyEditRejectsUnrecognizedShape(t *testing.T) {
	list := &box.EditList{Entries: []box.EditEntry{
		{SegmentDuration: 90000, MediaTime: 0, MediaRateInt: 1},
		{SegmentDuration: 90000, MediaTime: 1024, MediaRateInt: 1},
	}}
	_, err := classifyEdit(list)
	if errs.KindOf(err) != errs.UnsupportedEditList {
		t.Fatalf("err kind = %v, want UnsupportedEditList", errs.KindOf(err))
	}
}

func TestClassifyEditRejectsThreeEntries(t *testing.T) {
	list := &box.EditList{Entries: []box.EditEntry{
		{SegmentDuration: 1, MediaTime: -1},
		{SegmentDuration: 1, MediaTime: 0, MediaRateInt: 1},
		{SegmentDuration: 1, MediaTime: 1, MediaRateInt: 1},
	}}
	_, err := classifyEdit(list)
	if errs.KindOf(err) != errs.UnsupportedEditList {
		t.Fatalf("err kind = %v, want UnsupportedEditList", errs.KindOf(err))
	}
}

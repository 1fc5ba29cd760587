package form

import "testing"

func TestPublishLifecycle(t *testing.T) {
	f := &Form{ID: "f1", Name: "test"}

	f.Publish()
	if !f.Published {
		t.Fatal("form should be published")
	}
	v1 := f.CurrentVersion()
	if v1 == nil || v1.Sequence != 1 {
		t.Fatalf("first publish should create version 1, got %+v", v1)
	}
	if len(v1.Code) != VersionCodeLength {
		t.Errorf("version code length: got %d", len(v1.Code))
	}

	// re-publishing without changes keeps the deployed code valid
	f.Publish()
	if got := f.CurrentVersion(); got.Code != v1.Code || len(f.Versions) != 1 {
		t.Errorf("unchanged republish must keep the code, got %+v", f.Versions)
	}

	f.FlagForUpgrade()
	f.Publish()
	v2 := f.CurrentVersion()
	if v2.Sequence != 2 {
		t.Errorf("upgrade publish should bump the sequence, got %d", v2.Sequence)
	}
	if v2.Code == v1.Code {
		t.Error("upgrade publish must issue a fresh code")
	}
	if f.UpgradeNeeded {
		t.Error("upgrade flag should clear on publish")
	}
	current := 0
	for _, v := range f.Versions {
		if v.Current {
			current++
		}
	}
	if current != 1 {
		t.Errorf("exactly one current version expected, got %d", current)
	}
}

func TestUnpublish(t *testing.T) {
	f := &Form{ID: "f1"}
	f.Publish()
	code := f.CurrentVersion().Code
	f.Unpublish()
	if f.Published {
		t.Fatal("form should be unpublished")
	}
	if f.CurrentVersion() == nil || f.CurrentVersion().Code != code {
		t.Error("unpublish must not disturb version history")
	}
}

func TestIndexLookups(t *testing.T) {
	f := &Form{
		ID: "f1",
		Root: &Item{ID: "root", Group: true, Children: []*Item{
			{ID: "a1", QuestionID: "da1", LegacyQuestionID: "0e1", QType: QTypeText},
			{ID: "b1", Group: true, Children: []*Item{
				{ID: "a2", QuestionID: "da2", QType: QTypeSelectOne, OptionSetID: "c1"},
			}},
		}},
		OptionSets: []*OptionSet{{
			ID:     "c1",
			Levels: []string{"Kingdom", "Species"},
			Children: []*OptionNode{
				{ID: "n1", LegacyID: "f0e1", OptionID: "o1", Children: []*OptionNode{
					{ID: "n2", OptionID: "o2"},
				}},
			},
		}},
	}
	f.Index()

	if f.ItemByID("a2") == nil {
		t.Error("nested items should be indexed")
	}
	if it := f.ItemByQuestionID("da1"); it == nil || it.ID != "a1" {
		t.Error("question id lookup failed")
	}
	if it := f.ItemByLegacyQuestionID("0e1"); it == nil || it.ID != "a1" {
		t.Error("legacy question id lookup failed")
	}
	if got := f.OptionIDForNodeID("n2"); got != "o2" {
		t.Errorf("nested option node lookup: got %q", got)
	}
	if got := f.OptionIDForNodeID("f0e1"); got != "o1" {
		t.Errorf("legacy option node lookup: got %q", got)
	}
	if !f.HasOption("o2") || f.HasOption("o9") {
		t.Error("option id index wrong")
	}

	ml := f.ItemByID("a2")
	if !ml.Multilevel() || ml.LevelCount() != 2 {
		t.Errorf("multilevel detection failed: %v %d", ml.Multilevel(), ml.LevelCount())
	}
	if f.ItemByID("a1").Multilevel() {
		t.Error("plain question must not be multilevel")
	}
}

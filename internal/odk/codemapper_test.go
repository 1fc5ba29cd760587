package odk_test

import (
	"errors"
	"testing"

	"github.com/fieldview/collect-server/internal/form"
	"github.com/fieldview/collect-server/internal/odk"
)

func TestCodeForItem(t *testing.T) {
	g := group("b1", false, textQ("a1"))
	f := makeForm(g)

	if got := odk.CodeForItem(f, f.Root); got != odk.RootCode {
		t.Errorf("root code: expected %q, got %q", odk.RootCode, got)
	}
	if got := odk.CodeForItem(f, g); got != "grpb1" {
		t.Errorf("group code: got %q", got)
	}
	if got := odk.CodeForItem(f, g.Children[0]); got != "qinga1" {
		t.Errorf("question code: got %q", got)
	}
}

func TestCodeForLevel(t *testing.T) {
	ml := &form.Item{ID: "a1", QuestionID: "da1", QType: form.QTypeSelectOne, OptionSetID: "c1"}
	f := makeForm(ml)
	f.OptionSets = []*form.OptionSet{twoLevelSet("c1")}
	f.Index()

	if got := odk.CodeForLevel(f, ml, 2, false); got != "qinga1_2" {
		t.Errorf("direct level code: got %q", got)
	}
	if got := odk.CodeForLevel(f, ml, 2, true); got != "qinga1_1" {
		t.Errorf("previous level code: got %q", got)
	}
	plain := textQ("a2")
	f2 := makeForm(plain)
	if got := odk.CodeForLevel(f2, plain, 1, false); got != "qinga2" {
		t.Errorf("non-multilevel items take no suffix: got %q", got)
	}
}

func TestItemIDForCode(t *testing.T) {
	q := textQ("a1")
	q.LegacyQuestionID = "0e1"
	g := group("b1", false, q)
	f := makeForm(g)

	cases := []struct {
		code string
		want string
	}{
		{"grpb1", "b1"},
		{"grp-b1", "b1"}, // 5.x dashed form
		{"qinga1", "a1"},
		{"qinga1_2", "a1"}, // level suffix ignored for identity
		{"qda1", "a1"},     // current question id
		{"q0e1", "a1"},     // pre-migration question id
		{"qffff", ""},      // unknown question id resolves to nothing
	}
	for _, c := range cases {
		got, err := odk.ItemIDForCode(c.code, f)
		if err != nil {
			t.Errorf("%s: unexpected error %v", c.code, err)
			continue
		}
		if got != c.want {
			t.Errorf("%s: expected %q, got %q", c.code, c.want, got)
		}
	}
}

func TestItemIDForCodeUnknownFormat(t *testing.T) {
	f := makeForm(textQ("a1"))
	_, err := odk.ItemIDForCode("group123", f)
	var serr *odk.SubmissionError
	if !errors.As(err, &serr) {
		t.Fatalf("expected SubmissionError, got %v", err)
	}
	if want := "Code format unknown: group123."; serr.Reason != want {
		t.Errorf("expected %q, got %q", want, serr.Reason)
	}
}

func TestOptionCodes(t *testing.T) {
	ml := &form.Item{ID: "a1", QuestionID: "da1", QType: form.QTypeSelectOne, OptionSetID: "c1"}
	f := makeForm(ml)
	os1 := twoLevelSet("c1")
	os1.Children[0].LegacyID = "feed1"
	f.OptionSets = []*form.OptionSet{os1}
	f.Index()

	if got := odk.CodeForOptionNode(os1.Children[0]); got != "onc1a" {
		t.Errorf("option node code: got %q", got)
	}
	if got := odk.CodeForOptionSet(os1); got != "osc1" {
		t.Errorf("option set code: got %q", got)
	}

	if got := odk.OptionIDForSubmission("onc1a", f); got != "c1a0" {
		t.Errorf("node token: got %q", got)
	}
	if got := odk.OptionIDForSubmission("onfeed1", f); got != "c1a0" {
		t.Errorf("legacy node token: got %q", got)
	}
	if got := odk.OptionIDForSubmission("c1b0", f); got != "c1b0" {
		t.Errorf("bare option id token: got %q", got)
	}
	if got := odk.OptionIDForSubmission("bogus", f); got != "" {
		t.Errorf("unknown token should resolve to nothing, got %q", got)
	}
}

func TestIsItemCode(t *testing.T) {
	for _, code := range []string{"grpb1", "qinga1", "qda1", "onc1a", "osc1", "grp-b1"} {
		if !odk.IsItemCode(code) {
			t.Errorf("%s should be a recognized code", code)
		}
	}
	for _, code := range []string{"group123", "data", "header1", ""} {
		if odk.IsItemCode(code) {
			t.Errorf("%s should not be a recognized code", code)
		}
	}
}

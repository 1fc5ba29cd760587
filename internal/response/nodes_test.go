package response

import "testing"

func TestAttachAssignsContiguousRanks(t *testing.T) {
	root := &AnswerGroup{NodeData: NewNodeData("root")}
	for i := 0; i < 3; i++ {
		Attach(root, &Answer{NodeData: NewNodeData("q1")})
	}
	for i, c := range root.Children {
		if c.Data().NewRank != i+1 {
			t.Errorf("child %d: expected new_rank %d, got %d", i, i+1, c.Data().NewRank)
		}
		if c.Data().Rank != c.Data().NewRank {
			t.Errorf("child %d: rank %d should mirror new_rank %d", i, c.Data().Rank, c.Data().NewRank)
		}
		if c.Data().InstNum != 1 {
			t.Errorf("child %d: expected inherited inst_num 1, got %d", i, c.Data().InstNum)
		}
	}
}

func TestAttachInstanceNumbers(t *testing.T) {
	set := &AnswerGroupSet{NodeData: NewNodeData("g1")}
	first := &AnswerGroup{NodeData: NewNodeData("g1")}
	second := &AnswerGroup{NodeData: NewNodeData("g1")}
	Attach(set, first)
	Attach(set, second)

	if first.InstNum != 1 || second.InstNum != 2 {
		t.Errorf("group instances: got %d, %d", first.InstNum, second.InstNum)
	}

	// descendants of an instance inherit its number
	a := &Answer{NodeData: NewNodeData("q1")}
	Attach(second, a)
	if a.InstNum != 2 {
		t.Errorf("answer in second instance: expected inst_num 2, got %d", a.InstNum)
	}
}

func TestWalkVisitsDepthFirst(t *testing.T) {
	root := &AnswerGroup{NodeData: NewNodeData("root")}
	g := &AnswerGroup{NodeData: NewNodeData("g1")}
	Attach(root, g)
	Attach(g, &Answer{NodeData: NewNodeData("q1")})
	Attach(root, &Answer{NodeData: NewNodeData("q2")})

	var order []string
	Walk(root, func(n Node) { order = append(order, n.Data().QuestioningID) })
	want := []string{"root", "g1", "q1", "q2"}
	if len(order) != len(want) {
		t.Fatalf("expected %d visits, got %d", len(want), len(order))
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("visit %d: expected %s, got %s", i, want[i], order[i])
		}
	}
}

func TestMediaPendingExclusivity(t *testing.T) {
	a := &Answer{NodeData: NewNodeData("q1")}
	a.SetPending("photo.jpg")
	if !a.Pending() || a.Media != nil {
		t.Fatal("pending answer must carry no media")
	}
	a.SetMedia(&Media{Kind: "image", Key: "k", FileName: "photo.jpg"})
	if a.Pending() || a.Media == nil {
		t.Fatal("attached answer must clear the pending marker")
	}
	a.SetPending("other.jpg")
	if a.Media != nil {
		t.Fatal("re-pending must drop the payload")
	}
}

func TestAssociateTreeStampsResponseID(t *testing.T) {
	r := New("f1", "m1", "u1")
	root := &AnswerGroup{NodeData: NewNodeData("root")}
	Attach(root, &Answer{NodeData: NewNodeData("q1")})
	r.Root = root
	r.AssociateTree()

	Walk(r.Root, func(n Node) {
		if n.Data().ResponseID != r.ID {
			t.Errorf("node %s missing response id", n.Data().QuestioningID)
		}
	})
}

func TestPendingAnswers(t *testing.T) {
	r := New("f1", "m1", "")
	root := &AnswerGroup{NodeData: NewNodeData("root")}
	done := &Answer{NodeData: NewNodeData("q1"), Value: "A"}
	waiting := &Answer{NodeData: NewNodeData("q2")}
	waiting.SetPending("clip.mp4")
	Attach(root, done)
	Attach(root, waiting)
	r.Root = root

	if got := len(r.Answers()); got != 2 {
		t.Fatalf("expected 2 answers, got %d", got)
	}
	pending := r.PendingAnswers()
	if len(pending) != 1 || pending[0].PendingFileName != "clip.mp4" {
		t.Fatalf("pending answers: %+v", pending)
	}
}

package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"homebase/internal/models"
)

func newTaskFixture(t *testing.T) (TaskService, *fakeTaskRepo, *fakeProjectRepo, *fakePartyRepo, *fakeNotifier) {
	t.Helper()
	party := newFakePartyRepo()
	party.addParty(1, "Lakehouse",
		models.User{ID: 10, Email: "ana@example.com", DisplayName: "Ana"},
		models.User{ID: 11, Email: "ben@example.com", DisplayName: "Ben"},
	)
	labels := newFakeLabelRepo()
	tasks := newFakeTaskRepo(labels)
	projects := newFakeProjectRepo(tasks)
	comments := &fakeCommentRepo{}
	notify := &fakeNotifier{}
	svc := NewTaskService(tasks, projects, labels, comments, party, notify)
	return svc, tasks, projects, party, notify
}

func ana() models.Actor { return models.Actor{ID: 10, Type: models.ActorHuman} }

func TestCreateTaskAllocatesSequentialNumbers(t *testing.T) {
	svc, _, _, _, _ := newTaskFixture(t)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		task, err := svc.Create(ctx, &models.Task{PartyID: 1, CreatedBy: 10, Title: "task"}, nil, ana())
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		if task.TaskNumber != int64(i) {
			t.Fatalf("task %d got number %d", i, task.TaskNumber)
		}
	}
}

func TestCreateTaskConcurrentNumbersDistinct(t *testing.T) {
	svc, _, _, _, _ := newTaskFixture(t)
	ctx := context.Background()

	const n = 20
	var wg sync.WaitGroup
	numbers := make(chan int64, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			task, err := svc.Create(ctx, &models.Task{PartyID: 1, CreatedBy: 10, Title: "t"}, nil, ana())
			if err != nil {
				t.Errorf("create: %v", err)
				return
			}
			numbers <- task.TaskNumber
		}()
	}
	wg.Wait()
	close(numbers)

	seen := map[int64]bool{}
	for num := range numbers {
		if seen[num] {
			t.Fatalf("task number %d allocated twice", num)
		}
		seen[num] = true
	}
	if len(seen) != n {
		t.Fatalf("expected %d distinct numbers, got %d", n, len(seen))
	}
}

func TestCreateTaskValidation(t *testing.T) {
	svc, _, _, _, _ := newTaskFixture(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, &models.Task{PartyID: 1, CreatedBy: 10, Title: "   "}, nil, ana())
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("blank title: want ErrValidation, got %v", err)
	}

	_, err = svc.Create(ctx, &models.Task{PartyID: 1, CreatedBy: 10, Title: "x", Status: models.StatusDone}, nil, ana())
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("created done: want ErrValidation, got %v", err)
	}

	outsider := int64(99)
	_, err = svc.Create(ctx, &models.Task{PartyID: 1, CreatedBy: 10, Title: "x", AssignedTo: &outsider}, nil, ana())
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("non-member assignee: want ErrValidation, got %v", err)
	}
}

func TestDoneSetsCompletionAndReopenClearsIt(t *testing.T) {
	svc, _, _, _, _ := newTaskFixture(t)
	ctx := context.Background()

	task, err := svc.Create(ctx, &models.Task{PartyID: 1, CreatedBy: 10, Title: "fix gutter"}, nil, ana())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	done, err := svc.ChangeStatus(ctx, 1, task.ID, models.StatusDone, models.Actor{ID: 11, Type: models.ActorHuman})
	if err != nil {
		t.Fatalf("done: %v", err)
	}
	if done.CompletedAt == nil || done.CompletedBy == nil {
		t.Fatal("done task missing completedAt/completedBy")
	}
	if *done.CompletedBy != 11 {
		t.Fatalf("completedBy = %d, want 11", *done.CompletedBy)
	}

	reopened, err := svc.ChangeStatus(ctx, 1, task.ID, models.StatusTodo, ana())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if reopened.CompletedAt != nil || reopened.CompletedBy != nil {
		t.Fatal("reopened task still carries completion fields")
	}
}

func TestChangeStatusRecordsActivity(t *testing.T) {
	svc, repo, _, _, _ := newTaskFixture(t)
	ctx := context.Background()

	task, _ := svc.Create(ctx, &models.Task{PartyID: 1, CreatedBy: 10, Title: "t"}, nil, ana())
	if _, err := svc.ChangeStatus(ctx, 1, task.ID, models.StatusInProgress, ana()); err != nil {
		t.Fatalf("status: %v", err)
	}

	events, _ := repo.ListActivity(ctx, task.ID, 10)
	if len(events) != 2 {
		t.Fatalf("want 2 events (created, status_changed), got %d", len(events))
	}
	last := events[len(events)-1]
	if last.Action != models.ActionStatusChanged {
		t.Fatalf("last action = %q", last.Action)
	}
	if last.Detail["from"] != "todo" || last.Detail["to"] != "in_progress" {
		t.Fatalf("detail = %v", last.Detail)
	}
}

func TestLabelUpsertIsCaseInsensitive(t *testing.T) {
	svc, _, _, _, _ := newTaskFixture(t)
	ctx := context.Background()

	task, _ := svc.Create(ctx, &models.Task{PartyID: 1, CreatedBy: 10, Title: "t"}, []string{"Urgent"}, ana())

	label, err := svc.AttachLabel(ctx, 1, task.ID, "urgent", ana())
	if err != nil {
		t.Fatalf("attach: %v", err)
	}
	if label.Name != "Urgent" {
		t.Fatalf("expected original casing preserved, got %q", label.Name)
	}

	labels, _ := svc.ListLabels(ctx, 1)
	if len(labels) != 1 {
		t.Fatalf("want 1 label row, got %d", len(labels))
	}
}

func TestResolveCode(t *testing.T) {
	svc, _, projects, _, _ := newTaskFixture(t)
	ctx := context.Background()

	hb := &models.Project{PartyID: 1, Name: "House Build", Code: "HB", Status: models.ProjectActive}
	if err := projects.Create(ctx, hb); err != nil {
		t.Fatalf("project: %v", err)
	}
	task, _ := svc.Create(ctx, &models.Task{PartyID: 1, CreatedBy: 10, Title: "t", ProjectID: &hb.ID}, nil, ana())

	for _, ref := range []string{"T-1", "HB-1", "hb-1", "1"} {
		got, err := svc.ResolveCode(ctx, 1, ref)
		if err != nil {
			t.Fatalf("resolve %q: %v", ref, err)
		}
		if got.ID != task.ID {
			t.Fatalf("resolve %q: got task %d", ref, got.ID)
		}
	}

	if _, err := svc.ResolveCode(ctx, 1, "ZZ-1"); !errors.Is(err, ErrInvariant) {
		t.Fatalf("unknown project prefix: want ErrInvariant, got %v", err)
	}
	// an existing project code still has to be the task's own project
	garden := &models.Project{PartyID: 1, Name: "Garden", Code: "GA", Status: models.ProjectActive}
	if err := projects.Create(ctx, garden); err != nil {
		t.Fatalf("project: %v", err)
	}
	if _, err := svc.ResolveCode(ctx, 1, "GA-1"); !errors.Is(err, ErrInvariant) {
		t.Fatalf("wrong project prefix: want ErrInvariant, got %v", err)
	}
	if _, err := svc.ResolveCode(ctx, 1, "T-999"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing number: want ErrNotFound, got %v", err)
	}
	if _, err := svc.ResolveCode(ctx, 1, "gutter"); !errors.Is(err, ErrInvariant) {
		t.Fatalf("non-reference: want ErrInvariant, got %v", err)
	}
}

func TestCrossPartyLookupIsNotFound(t *testing.T) {
	svc, _, _, party, _ := newTaskFixture(t)
	party.addParty(2, "Other", models.User{ID: 20})
	ctx := context.Background()

	task, _ := svc.Create(ctx, &models.Task{PartyID: 1, CreatedBy: 10, Title: "t"}, nil, ana())

	if _, err := svc.GetByID(ctx, 2, task.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("cross-party get: want ErrNotFound, got %v", err)
	}
}

func TestAssignmentNotifiesAssignee(t *testing.T) {
	svc, _, _, _, notify := newTaskFixture(t)
	ctx := context.Background()

	ben := int64(11)
	_, err := svc.Create(ctx, &models.Task{PartyID: 1, CreatedBy: 10, Title: "t", AssignedTo: &ben}, nil, ana())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(notify.sent) != 1 || notify.sent[0] != "ben@example.com" {
		t.Fatalf("notification sent = %v", notify.sent)
	}

	// self-assignment stays silent
	me := int64(10)
	if _, err := svc.Create(ctx, &models.Task{PartyID: 1, CreatedBy: 10, Title: "t2", AssignedTo: &me}, nil, ana()); err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(notify.sent) != 1 {
		t.Fatalf("self-assignment should not notify, sent = %v", notify.sent)
	}
}

func TestProjectDeleteDetachesTasks(t *testing.T) {
	svc, repo, projects, _, _ := newTaskFixture(t)
	projectSvc := NewProjectService(projects)
	ctx := context.Background()

	p, err := projectSvc.Create(ctx, &models.Project{PartyID: 1, Name: "Renovation"})
	if err != nil {
		t.Fatalf("project: %v", err)
	}
	task, _ := svc.Create(ctx, &models.Task{PartyID: 1, CreatedBy: 10, Title: "t", ProjectID: &p.ID}, nil, ana())

	if err := projectSvc.Delete(ctx, 1, p.ID); err != nil {
		t.Fatalf("delete project: %v", err)
	}

	got, _ := repo.GetByID(ctx, 1, task.ID)
	if got == nil {
		t.Fatal("task deleted with project")
	}
	if got.ProjectID != nil {
		t.Fatal("task still references deleted project")
	}
}

func TestUpdateAssignOnlyEmitsAssignedAction(t *testing.T) {
	svc, repo, _, _, _ := newTaskFixture(t)
	ctx := context.Background()

	task, _ := svc.Create(ctx, &models.Task{PartyID: 1, CreatedBy: 10, Title: "t"}, nil, ana())
	ben := int64(11)
	if _, err := svc.Update(ctx, 1, task.ID, TaskUpdate{AssignedTo: &ben}, ana()); err != nil {
		t.Fatalf("update: %v", err)
	}

	events, _ := repo.ListActivity(ctx, task.ID, 10)
	last := events[len(events)-1]
	if last.Action != models.ActionAssigned {
		t.Fatalf("action = %q, want %q", last.Action, models.ActionAssigned)
	}
}

func TestRepositoryNotFoundMapsToServiceSentinel(t *testing.T) {
	// Rows can disappear between the service's existence check and the
	// repository write. The repository's own not-found must still satisfy
	// the service sentinel so handlers answer 404, not 500.
	_, repo, _, _, _ := newTaskFixture(t)

	err := repo.Update(context.Background(), &models.Task{ID: 404, PartyID: 1}, ana(), models.ActionUpdated, nil)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

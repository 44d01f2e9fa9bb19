package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"homebase/internal/llm"
	"homebase/internal/models"
	"homebase/internal/services"
)

// Tool names exposed to the model. The set is closed: dispatch is an explicit
// switch over these constants, each with its own typed argument struct.
const (
	toolCreateTask       = "createTask"
	toolCreateSubtask    = "createSubtask"
	toolEditTask         = "editTask"
	toolUpdateTaskStatus = "updateTaskStatus"
	toolAddTaskComment   = "addTaskComment"
	toolCreateProject    = "createProject"
	toolEditProject      = "editProject"
	toolListTasks        = "listTasks"
	toolListProjects     = "listProjects"
	toolListLabels       = "listLabels"
	toolSearchDocuments  = "searchDocuments"
)

func toolDefs() []llm.ToolDef {
	str := func(desc string) map[string]any {
		return map[string]any{"type": "string", "description": desc}
	}
	integer := func(desc string) map[string]any {
		return map[string]any{"type": "integer", "description": desc}
	}
	obj := func(props map[string]any, required ...string) map[string]any {
		p := map[string]any{"type": "object", "properties": props}
		if len(required) > 0 {
			p["required"] = required
		}
		return p
	}

	taskFields := map[string]any{
		"title":        str("Task title"),
		"description":  str("Longer description"),
		"priority":     map[string]any{"type": "string", "enum": []string{"low", "medium", "high"}},
		"assignee":     str("Member user id, or 'me' for the requesting user"),
		"due_date":     str("Due date, YYYY-MM-DD"),
		"start_date":   str("Start date, YYYY-MM-DD"),
		"project_code": str("Project code, e.g. HB"),
		"labels":       map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
	}

	return []llm.ToolDef{
		{
			Name:        toolCreateTask,
			Description: "Create a task. Title is required; everything else is optional.",
			Parameters:  obj(taskFields, "title"),
		},
		{
			Name:        toolCreateSubtask,
			Description: "Create a subtask under an existing task.",
			Parameters: obj(map[string]any{
				"parent":   str("Parent task reference, e.g. T-3 or HB-3"),
				"title":    str("Subtask title"),
				"priority": taskFields["priority"],
				"assignee": taskFields["assignee"],
				"due_date": taskFields["due_date"],
			}, "parent", "title"),
		},
		{
			Name:        toolEditTask,
			Description: "Partially update a task. Only the provided fields change.",
			Parameters: obj(map[string]any{
				"task":           str("Task reference, e.g. T-3 or HB-3"),
				"title":          taskFields["title"],
				"description":    taskFields["description"],
				"priority":       taskFields["priority"],
				"assignee":       taskFields["assignee"],
				"clear_assignee": map[string]any{"type": "boolean"},
				"due_date":       taskFields["due_date"],
				"clear_due_date": map[string]any{"type": "boolean"},
				"project_code":   taskFields["project_code"],
			}, "task"),
		},
		{
			Name:        toolUpdateTaskStatus,
			Description: "Move a task to todo, in_progress or done.",
			Parameters: obj(map[string]any{
				"task":   str("Task reference, e.g. T-3 or HB-3"),
				"status": map[string]any{"type": "string", "enum": []string{"todo", "in_progress", "done"}},
			}, "task", "status"),
		},
		{
			Name:        toolAddTaskComment,
			Description: "Add a comment to a task.",
			Parameters: obj(map[string]any{
				"task":    str("Task reference, e.g. T-3 or HB-3"),
				"content": str("Comment text"),
			}, "task", "content"),
		},
		{
			Name:        toolCreateProject,
			Description: "Create a project to group tasks.",
			Parameters: obj(map[string]any{
				"name":        str("Project name"),
				"description": str("Project description"),
				"color":       str("Hex color like #16a34a"),
				"icon":        str("Icon name"),
				"code":        str("Short uppercase code used in task numbering; derived from the name when omitted"),
			}, "name"),
		},
		{
			Name:        toolEditProject,
			Description: "Partially update a project. Archiving keeps its tasks.",
			Parameters: obj(map[string]any{
				"project":     str("Project code, e.g. HB"),
				"name":        str("New name"),
				"description": str("New description"),
				"color":       str("New color"),
				"icon":        str("New icon"),
				"status":      map[string]any{"type": "string", "enum": []string{"active", "archived"}},
			}, "project"),
		},
		{
			Name:        toolListTasks,
			Description: "List the party's tasks with optional filters.",
			Parameters: obj(map[string]any{
				"status":       map[string]any{"type": "string", "enum": []string{"todo", "in_progress", "done"}},
				"assignee":     taskFields["assignee"],
				"project_code": taskFields["project_code"],
				"label":        str("Label name"),
				"parent":       str("Parent task reference; lists its subtasks"),
				"sort":         map[string]any{"type": "string", "enum": []string{"created", "due", "priority"}},
			}),
		},
		{
			Name:        toolListProjects,
			Description: "List the party's projects.",
			Parameters: obj(map[string]any{
				"status": map[string]any{"type": "string", "enum": []string{"active", "archived"}},
			}),
		},
		{
			Name:        toolListLabels,
			Description: "List the party's labels.",
			Parameters:  obj(map[string]any{}),
		},
		{
			Name:        toolSearchDocuments,
			Description: "Search the party's shared documents for relevant passages.",
			Parameters: obj(map[string]any{
				"query": str("What to look for"),
				"top_k": integer("How many passages to return (default 5)"),
			}, "query"),
		},
	}
}

// toolError is the structured failure fed back into the loop; the model can
// retry or explain it to the user instead of the turn dying.
type toolError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func errResult(kind, msg string) string {
	out, _ := json.Marshal(map[string]toolError{"error": {Type: kind, Message: msg}})
	return string(out)
}

func mapError(err error) string {
	switch {
	case errors.Is(err, services.ErrValidation):
		return errResult("validation", err.Error())
	case errors.Is(err, services.ErrNotFound):
		return errResult("not_found", err.Error())
	case errors.Is(err, services.ErrInvariant):
		return errResult("invalid_reference", err.Error())
	case errors.Is(err, services.ErrDependency):
		return errResult("unavailable", err.Error())
	default:
		return errResult("internal", "the operation could not be completed")
	}
}

func okResult(v any) string {
	out, err := json.Marshal(v)
	if err != nil {
		return errResult("internal", "result encoding failed")
	}
	return string(out)
}

// taskView is the compact task shape returned to the model.
type taskView struct {
	Code        string   `json:"code"`
	Title       string   `json:"title"`
	Status      string   `json:"status"`
	Priority    string   `json:"priority"`
	AssignedTo  *int64   `json:"assigned_to,omitempty"`
	DueDate     string   `json:"due_date,omitempty"`
	ProjectCode string   `json:"project_code,omitempty"`
	Labels      []string `json:"labels,omitempty"`
	Subtasks    int      `json:"subtasks,omitempty"`
	Comments    int      `json:"comments,omitempty"`
}

func viewOf(t *models.Task) taskView {
	v := taskView{
		Code:        t.DisplayCode(),
		Title:       t.Title,
		Status:      string(t.Status),
		Priority:    string(t.Priority),
		AssignedTo:  t.AssignedTo,
		ProjectCode: t.ProjectCode,
		Labels:      t.LabelNames,
		Subtasks:    t.SubtaskCount,
		Comments:    t.CommentCount,
	}
	if t.DueDate != nil {
		v.DueDate = t.DueDate.Format("2006-01-02")
	}
	return v
}

type createTaskArgs struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Priority    string   `json:"priority"`
	Assignee    string   `json:"assignee"`
	DueDate     string   `json:"due_date"`
	StartDate   string   `json:"start_date"`
	ProjectCode string   `json:"project_code"`
	Labels      []string `json:"labels"`
}

type createSubtaskArgs struct {
	Parent   string `json:"parent"`
	Title    string `json:"title"`
	Priority string `json:"priority"`
	Assignee string `json:"assignee"`
	DueDate  string `json:"due_date"`
}

type editTaskArgs struct {
	Task          string  `json:"task"`
	Title         string  `json:"title"`
	Description   *string `json:"description"`
	Priority      string  `json:"priority"`
	Assignee      string  `json:"assignee"`
	ClearAssignee bool    `json:"clear_assignee"`
	DueDate       string  `json:"due_date"`
	ClearDueDate  bool    `json:"clear_due_date"`
	ProjectCode   string  `json:"project_code"`
}

type updateTaskStatusArgs struct {
	Task   string `json:"task"`
	Status string `json:"status"`
}

type addTaskCommentArgs struct {
	Task    string `json:"task"`
	Content string `json:"content"`
}

type createProjectArgs struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Color       string `json:"color"`
	Icon        string `json:"icon"`
	Code        string `json:"code"`
}

type editProjectArgs struct {
	Project     string  `json:"project"`
	Name        string  `json:"name"`
	Description *string `json:"description"`
	Color       string  `json:"color"`
	Icon        string  `json:"icon"`
	Status      string  `json:"status"`
}

type listTasksArgs struct {
	Status      string `json:"status"`
	Assignee    string `json:"assignee"`
	ProjectCode string `json:"project_code"`
	Label       string `json:"label"`
	Parent      string `json:"parent"`
	Sort        string `json:"sort"`
}

type listProjectsArgs struct {
	Status string `json:"status"`
}

type searchDocumentsArgs struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k"`
}

// execute runs one tool call and always returns a JSON result string; domain
// failures become structured errors, never terminated requests.
func (e *Engine) execute(ctx context.Context, partyID, userID int64, call llm.ToolCall) string {
	// Never trust party scope carried in conversation state: membership is
	// re-derived before every tool execution.
	ok, err := e.Party.IsMember(ctx, partyID, userID)
	if err != nil {
		return mapError(err)
	}
	if !ok {
		return errResult("not_found", "party not found")
	}

	actor := models.Actor{ID: userID, Type: models.ActorAgent}

	switch call.Name {
	case toolCreateTask:
		var args createTaskArgs
		if msg := unmarshalArgs(call.Arguments, &args); msg != "" {
			return errResult("validation", msg)
		}
		return e.createTask(ctx, partyID, userID, actor, args, nil)

	case toolCreateSubtask:
		var args createSubtaskArgs
		if msg := unmarshalArgs(call.Arguments, &args); msg != "" {
			return errResult("validation", msg)
		}
		parent, err := e.Tasks.ResolveCode(ctx, partyID, args.Parent)
		if err != nil {
			return mapError(err)
		}
		return e.createTask(ctx, partyID, userID, actor, createTaskArgs{
			Title:    args.Title,
			Priority: args.Priority,
			Assignee: args.Assignee,
			DueDate:  args.DueDate,
		}, &parent.ID)

	case toolEditTask:
		var args editTaskArgs
		if msg := unmarshalArgs(call.Arguments, &args); msg != "" {
			return errResult("validation", msg)
		}
		return e.editTask(ctx, partyID, userID, actor, args)

	case toolUpdateTaskStatus:
		var args updateTaskStatusArgs
		if msg := unmarshalArgs(call.Arguments, &args); msg != "" {
			return errResult("validation", msg)
		}
		task, err := e.Tasks.ResolveCode(ctx, partyID, args.Task)
		if err != nil {
			return mapError(err)
		}
		updated, err := e.Tasks.ChangeStatus(ctx, partyID, task.ID, models.TaskStatus(args.Status), actor)
		if err != nil {
			return mapError(err)
		}
		return okResult(viewOf(updated))

	case toolAddTaskComment:
		var args addTaskCommentArgs
		if msg := unmarshalArgs(call.Arguments, &args); msg != "" {
			return errResult("validation", msg)
		}
		task, err := e.Tasks.ResolveCode(ctx, partyID, args.Task)
		if err != nil {
			return mapError(err)
		}
		comment, err := e.Tasks.AddComment(ctx, partyID, task.ID, args.Content, actor)
		if err != nil {
			return mapError(err)
		}
		return okResult(map[string]any{"task": task.DisplayCode(), "comment_id": comment.ID})

	case toolCreateProject:
		var args createProjectArgs
		if msg := unmarshalArgs(call.Arguments, &args); msg != "" {
			return errResult("validation", msg)
		}
		project, err := e.Projects.Create(ctx, &models.Project{
			PartyID:     partyID,
			Name:        args.Name,
			Description: args.Description,
			Color:       args.Color,
			Icon:        args.Icon,
			Code:        args.Code,
		})
		if err != nil {
			return mapError(err)
		}
		return okResult(map[string]any{"code": project.Code, "name": project.Name, "status": project.Status})

	case toolEditProject:
		var args editProjectArgs
		if msg := unmarshalArgs(call.Arguments, &args); msg != "" {
			return errResult("validation", msg)
		}
		return e.editProject(ctx, partyID, args)

	case toolListTasks:
		var args listTasksArgs
		if msg := unmarshalArgs(call.Arguments, &args); msg != "" {
			return errResult("validation", msg)
		}
		return e.listTasks(ctx, partyID, userID, args)

	case toolListProjects:
		var args listProjectsArgs
		if msg := unmarshalArgs(call.Arguments, &args); msg != "" {
			return errResult("validation", msg)
		}
		var status *models.ProjectStatus
		if args.Status != "" {
			s := models.ProjectStatus(args.Status)
			status = &s
		}
		projects, err := e.Projects.List(ctx, partyID, status)
		if err != nil {
			return mapError(err)
		}
		out := make([]map[string]any, 0, len(projects))
		for _, p := range projects {
			out = append(out, map[string]any{"code": p.Code, "name": p.Name, "status": p.Status})
		}
		return okResult(out)

	case toolListLabels:
		labels, err := e.Tasks.ListLabels(ctx, partyID)
		if err != nil {
			return mapError(err)
		}
		names := make([]string, 0, len(labels))
		for _, l := range labels {
			names = append(names, l.Name)
		}
		return okResult(names)

	case toolSearchDocuments:
		var args searchDocumentsArgs
		if msg := unmarshalArgs(call.Arguments, &args); msg != "" {
			return errResult("validation", msg)
		}
		matches, err := e.Retrieval.Search(ctx, partyID, args.Query, args.TopK)
		if err != nil {
			return mapError(err)
		}
		out := make([]map[string]any, 0, len(matches))
		for _, m := range matches {
			out = append(out, map[string]any{
				"document": m.DocumentTitle,
				"category": m.DocumentCategory,
				"score":    m.Score,
				"excerpt":  m.Chunk.Content,
			})
		}
		return okResult(out)

	default:
		return errResult("unknown_tool", fmt.Sprintf("tool %q is not available", call.Name))
	}
}

func (e *Engine) createTask(ctx context.Context, partyID, userID int64, actor models.Actor, args createTaskArgs, parentID *int64) string {
	task := &models.Task{
		PartyID:      partyID,
		ParentTaskID: parentID,
		CreatedBy:    userID,
		Title:        args.Title,
		Description:  args.Description,
		Priority:     models.TaskPriority(args.Priority),
	}
	if args.Assignee != "" {
		id, err := resolveAssignee(args.Assignee, userID)
		if err != nil {
			return errResult("validation", err.Error())
		}
		task.AssignedTo = &id
	}
	if args.DueDate != "" {
		t, err := parseDate(args.DueDate)
		if err != nil {
			return errResult("validation", "invalid due_date: "+args.DueDate)
		}
		task.DueDate = &t
	}
	if args.StartDate != "" {
		t, err := parseDate(args.StartDate)
		if err != nil {
			return errResult("validation", "invalid start_date: "+args.StartDate)
		}
		task.StartDate = &t
	}
	if args.ProjectCode != "" {
		projects, err := e.Projects.List(ctx, partyID, nil)
		if err != nil {
			return mapError(err)
		}
		found := false
		for _, p := range projects {
			if strings.EqualFold(p.Code, args.ProjectCode) {
				id := p.ID
				task.ProjectID = &id
				found = true
				break
			}
		}
		if !found {
			return errResult("invalid_reference", fmt.Sprintf("unknown project code %q", args.ProjectCode))
		}
	}

	created, err := e.Tasks.Create(ctx, task, args.Labels, actor)
	if err != nil {
		return mapError(err)
	}
	return okResult(viewOf(created))
}

func (e *Engine) editTask(ctx context.Context, partyID, userID int64, actor models.Actor, args editTaskArgs) string {
	task, err := e.Tasks.ResolveCode(ctx, partyID, args.Task)
	if err != nil {
		return mapError(err)
	}

	update := services.TaskUpdate{
		Description:   args.Description,
		ClearAssignee: args.ClearAssignee,
		ClearDueDate:  args.ClearDueDate,
	}
	if args.Title != "" {
		update.Title = &args.Title
	}
	if args.Priority != "" {
		p := models.TaskPriority(args.Priority)
		update.Priority = &p
	}
	if args.Assignee != "" && !args.ClearAssignee {
		id, err := resolveAssignee(args.Assignee, userID)
		if err != nil {
			return errResult("validation", err.Error())
		}
		update.AssignedTo = &id
	}
	if args.DueDate != "" && !args.ClearDueDate {
		t, err := parseDate(args.DueDate)
		if err != nil {
			return errResult("validation", "invalid due_date: "+args.DueDate)
		}
		update.DueDate = &t
	}
	if args.ProjectCode != "" {
		projects, perr := e.Projects.List(ctx, partyID, nil)
		if perr != nil {
			return mapError(perr)
		}
		found := false
		for _, p := range projects {
			if strings.EqualFold(p.Code, args.ProjectCode) {
				id := p.ID
				update.ProjectID = &id
				found = true
				break
			}
		}
		if !found {
			return errResult("invalid_reference", fmt.Sprintf("unknown project code %q", args.ProjectCode))
		}
	}

	updated, err := e.Tasks.Update(ctx, partyID, task.ID, update, actor)
	if err != nil {
		return mapError(err)
	}
	return okResult(viewOf(updated))
}

func (e *Engine) editProject(ctx context.Context, partyID int64, args editProjectArgs) string {
	projects, err := e.Projects.List(ctx, partyID, nil)
	if err != nil {
		return mapError(err)
	}
	var target *models.Project
	for i := range projects {
		if strings.EqualFold(projects[i].Code, args.Project) {
			target = &projects[i]
			break
		}
	}
	if target == nil {
		return errResult("invalid_reference", fmt.Sprintf("unknown project code %q", args.Project))
	}

	update := services.ProjectUpdate{Description: args.Description}
	if args.Name != "" {
		update.Name = &args.Name
	}
	if args.Color != "" {
		update.Color = &args.Color
	}
	if args.Icon != "" {
		update.Icon = &args.Icon
	}
	if args.Status != "" {
		s := models.ProjectStatus(args.Status)
		update.Status = &s
	}

	updated, err := e.Projects.Update(ctx, partyID, target.ID, update)
	if err != nil {
		return mapError(err)
	}
	return okResult(map[string]any{"code": updated.Code, "name": updated.Name, "status": updated.Status})
}

func (e *Engine) listTasks(ctx context.Context, partyID, userID int64, args listTasksArgs) string {
	filter := models.TaskFilter{Sort: models.TaskSort(args.Sort)}
	if args.Status != "" {
		s := models.TaskStatus(args.Status)
		if !models.IsValidTaskStatus(s) {
			return errResult("validation", fmt.Sprintf("unknown status %q", args.Status))
		}
		filter.Status = &s
	}
	if args.Assignee != "" {
		id, err := resolveAssignee(args.Assignee, userID)
		if err != nil {
			return errResult("validation", err.Error())
		}
		filter.AssignedTo = &id
	}
	if args.Label != "" {
		filter.LabelName = &args.Label
	}
	if args.Parent != "" {
		parent, err := e.Tasks.ResolveCode(ctx, partyID, args.Parent)
		if err != nil {
			return mapError(err)
		}
		filter.ParentTaskID = &parent.ID
	}
	if args.ProjectCode != "" {
		projects, err := e.Projects.List(ctx, partyID, nil)
		if err != nil {
			return mapError(err)
		}
		found := false
		for _, p := range projects {
			if strings.EqualFold(p.Code, args.ProjectCode) {
				id := p.ID
				filter.ProjectID = &id
				found = true
				break
			}
		}
		if !found {
			return errResult("invalid_reference", fmt.Sprintf("unknown project code %q", args.ProjectCode))
		}
	}

	tasks, err := e.Tasks.List(ctx, partyID, filter)
	if err != nil {
		return mapError(err)
	}
	out := make([]taskView, 0, len(tasks))
	for i := range tasks {
		out = append(out, viewOf(&tasks[i]))
	}
	return okResult(out)
}

func unmarshalArgs(raw string, into any) string {
	if strings.TrimSpace(raw) == "" {
		raw = "{}"
	}
	if err := json.Unmarshal([]byte(raw), into); err != nil {
		return "malformed tool arguments: " + err.Error()
	}
	return ""
}

func resolveAssignee(ref string, callerID int64) (int64, error) {
	ref = strings.TrimSpace(ref)
	if strings.EqualFold(ref, "me") {
		return callerID, nil
	}
	var id int64
	if _, err := fmt.Sscanf(ref, "%d", &id); err != nil || id <= 0 {
		return 0, fmt.Errorf("assignee must be a member user id or 'me', got %q", ref)
	}
	return id, nil
}

func parseDate(s string) (time.Time, error) {
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable date %q", s)
}

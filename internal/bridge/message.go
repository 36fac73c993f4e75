// Package bridge translates UI commands into aggregator calls and fans
// aggregator notifications out as typed messages. Every outer surface
// (daemon socket, HTTP, MCP) speaks these messages.
package bridge

import (
	"slices"

	"github.com/Chili6666/iclaude-workbench/internal/plan"
	"github.com/Chili6666/iclaude-workbench/internal/task"
	"github.com/Chili6666/iclaude-workbench/internal/workspace"
)

// Message types sent to clients.
const (
	TypeTasksUpdated            = "tasksUpdated"
	TypePlansUpdated            = "plansUpdated"
	TypeWorkspaceFoldersUpdated = "workspaceFoldersUpdated"
	TypePlanSearchResults       = "planSearchResults"
	TypePlanContent             = "planContent"
	TypeFileOpened              = "fileOpened"
	TypePlanCopied              = "planCopied"
)

// Command types accepted by Handle.
const (
	CmdRequestTasks            = "requestTasks"
	CmdRequestPlans            = "requestPlans"
	CmdRequestWorkspaceFolders = "requestWorkspaceFolders"
	CmdOpenTaskFile            = "openTaskFile"
	CmdOpenPlanFile            = "openPlanFile"
	CmdCopyPlanToFolder        = "copyPlanToFolder"
	CmdCopyPlanToProject       = "copyPlanToProject"
	CmdSearchPlans             = "searchPlans"
	CmdRequestPlanContent      = "requestPlanContent"
)

// Command is a request from a client. Only the fields relevant to Type are
// read.
type Command struct {
	Type             string `json:"type"`
	FilePath         string `json:"filePath,omitempty"`
	SourcePath       string `json:"sourcePath,omitempty"`
	TargetFolderPath string `json:"targetFolderPath,omitempty"`
	Query            string `json:"query,omitempty"`
	PlanID           string `json:"planId,omitempty"`
}

// Message is a notification or a command reply.
type Message struct {
	Type             string             `json:"type"`
	Tasks            []task.Task        `json:"tasks,omitempty"`
	Plans            []plan.Plan        `json:"plans,omitempty"`
	WorkspaceFolders []workspace.Folder `json:"workspaceFolders,omitempty"`
	Plan             *plan.Plan         `json:"plan,omitempty"`
	Query            string             `json:"query,omitempty"`
	// Path is the file acted on by open and copy commands.
	Path string `json:"path,omitempty"`
}

// Clone returns a copy of m that shares no slices, maps or plans with it.
func (m Message) Clone() Message {
	if m.Tasks != nil {
		m.Tasks = task.CloneAll(m.Tasks)
	}
	m.Plans = slices.Clone(m.Plans)
	m.WorkspaceFolders = slices.Clone(m.WorkspaceFolders)
	if m.Plan != nil {
		p := *m.Plan
		m.Plan = &p
	}
	return m
}

// TasksUpdated builds a tasksUpdated message.
func TasksUpdated(tasks []task.Task) Message {
	return Message{Type: TypeTasksUpdated, Tasks: tasks}
}

// PlansUpdated builds a plansUpdated message.
func PlansUpdated(plans []plan.Plan) Message {
	return Message{Type: TypePlansUpdated, Plans: plans}
}

// WorkspaceFoldersUpdated builds a workspaceFoldersUpdated message.
func WorkspaceFoldersUpdated(folders []workspace.Folder) Message {
	return Message{Type: TypeWorkspaceFoldersUpdated, WorkspaceFolders: folders}
}

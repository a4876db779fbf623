// Package agent implements the agent worker: a goroutine owning one
// agent's conversation, running the reasoning loop for each inbound
// message and reacting to team traffic between turns.
//
// All state lives inside the actor goroutine. Commands and pubsub
// messages share one mailbox, so an injected peer message never
// preempts an in-flight reasoning turn; it becomes visible on the
// next one.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/AGENTMESH/internal/cost"
	"github.com/AGENTMESH/internal/keeper"
	"github.com/AGENTMESH/internal/memory"
	"github.com/AGENTMESH/internal/modelclient"
	"github.com/AGENTMESH/internal/modelrouter"
	"github.com/AGENTMESH/internal/pubsub"
	"github.com/AGENTMESH/internal/ratelimit"
	"github.com/AGENTMESH/internal/roles"
	"github.com/AGENTMESH/internal/teamtable"
	"github.com/AGENTMESH/internal/tools"
	"github.com/AGENTMESH/internal/types"
)

const (
	// acquireEstimate is the token estimate handed to the rate
	// limiter before each model call.
	acquireEstimate = 1000
	// toolTimeout bounds one tool invocation
	toolTimeout = 60 * time.Second
	// budgetWarnFraction triggers the budget.warning broadcast
	budgetWarnFraction = 0.8
)

// ErrMaxIterations means the reasoning loop hit the role's cap
// without producing a final answer.
var ErrMaxIterations = errors.New("agent: max iterations exceeded")

// ErrStopped is returned for operations on a stopped agent
var ErrStopped = errors.New("agent: stopped")

// ErrCrashed is reported for a turn that died before completing
var ErrCrashed = errors.New("agent: turn crashed")

// KeeperLookup returns the live keepers of a team
type KeeperLookup func(teamID string) []*keeper.Keeper

// Deps are the collaborators an agent is wired to. Bus, Limiter,
// Tracker, Router and Client are required; the rest degrade
// gracefully when nil.
type Deps struct {
	Bus     *pubsub.Bus
	Limiter *ratelimit.Limiter
	Tracker *cost.Tracker
	Router  *modelrouter.Router
	Client  modelclient.Client
	Tools   *tools.Registry
	Table   *teamtable.Table
	Store   memory.Store
	Keepers KeeperLookup

	// ProjectRules returns extra rules appended to the system
	// prompt, typically read from a rules file in the project.
	ProjectRules func(projectPath string) string
	// RepoMap returns a token-budgeted repository overview
	RepoMap func(projectPath string) string

	// HardAbort stops a turn when a budget verdict comes back
	// exceeded instead of warning and continuing.
	HardAbort bool

	// Supervise runs the worker loop with restart-on-panic; the
	// returned channel closes when the loop will not run again.
	// Nil means a plain goroutine with no restarts.
	Supervise func(name string, fn func()) <-chan struct{}
}

// Options describe the agent being spawned
type Options struct {
	TeamID      string
	Name        string
	Role        roles.Role
	Model       string
	ProjectPath string
	SessionID   string
}

// Agent is the public handle of one agent worker
type Agent struct {
	teamID string
	name   string
	deps   Deps

	commands chan command
	inbox    *pubsub.Subscription
	quit     chan struct{}
	done     <-chan struct{}
	stopOnce sync.Once

	// Owned by the actor goroutine
	role         roles.Role
	status       types.AgentStatus
	model        string
	projectPath  string
	sessionID    string
	messages     []types.Message
	task         *types.TeamTask
	peerContext  map[string]any
	failureCount int
}

type command struct {
	run func()
}

// Result is the outcome of one send_message turn
type Result struct {
	Text  string
	Error error
}

// Status is a read-only snapshot of the agent
type Status struct {
	Name         string            `json:"name"`
	Role         string            `json:"role"`
	Status       types.AgentStatus `json:"status"`
	Model        string            `json:"model"`
	TaskID       string            `json:"task_id,omitempty"`
	MessageCount int               `json:"message_count"`
}

// Spawn starts an agent worker and registers it on the team table
func Spawn(opts Options, deps Deps) *Agent {
	a := &Agent{
		teamID:      opts.TeamID,
		name:        opts.Name,
		deps:        deps,
		commands:    make(chan command, 32),
		quit:        make(chan struct{}),
		role:        opts.Role,
		status:      types.StatusIdle,
		model:       opts.Model,
		projectPath: opts.ProjectPath,
		sessionID:   opts.SessionID,
		peerContext: make(map[string]any),
	}
	if a.sessionID == "" {
		a.sessionID = uuid.NewString()
	}

	a.inbox = deps.Bus.Subscribe(
		pubsub.TeamTopic(a.teamID),
		pubsub.AgentTopic(a.teamID, a.name),
		pubsub.ContextTopic(a.teamID),
		pubsub.TasksTopic(a.teamID),
		pubsub.DecisionsTopic(a.teamID),
	)

	if deps.Table != nil {
		deps.Table.RegisterAgent(types.AgentInfo{
			Name:   a.name,
			Role:   a.role.Name,
			Status: types.StatusIdle,
			Model:  a.model,
		})
	}

	if deps.Supervise != nil {
		a.done = deps.Supervise(opts.TeamID+"/"+opts.Name, a.run)
	} else {
		done := make(chan struct{})
		a.done = done
		go func() {
			defer close(done)
			a.run()
		}()
	}
	return a
}

// Name returns the agent's name
func (a *Agent) Name() string { return a.name }

// run is the actor loop. It returns only on Stop; a supervised runner
// respawns it after a panic so one crashed turn does not kill the agent.
func (a *Agent) run() {
	for {
		select {
		case <-a.quit:
			return
		case cmd := <-a.commands:
			cmd.run()
		case msg, ok := <-a.inbox.C:
			if ok {
				a.handleInfo(msg)
			}
		}
	}
}

// submit runs fn inside the actor goroutine, blocking until done
func (a *Agent) submit(fn func()) error {
	doneCh := make(chan struct{})
	cmd := command{run: func() {
		defer close(doneCh)
		fn()
	}}
	select {
	case a.commands <- cmd:
	case <-a.quit:
		return ErrStopped
	}
	select {
	case <-doneCh:
		return nil
	case <-a.done:
		return ErrStopped
	}
}

// submitAsync queues fn without waiting for it
func (a *Agent) submitAsync(fn func()) {
	select {
	case a.commands <- command{run: fn}:
	case <-a.quit:
	}
}

// Stop terminates the worker. Pending commands are abandoned.
func (a *Agent) Stop() {
	a.stopOnce.Do(func() {
		a.deps.Bus.Unsubscribe(a.inbox)
		close(a.quit)
		<-a.done
	})
}

// SendMessage runs one blocking reasoning turn over the given text.
// A turn that panics mid-flight reports ErrCrashed; the worker itself
// is respawned by its supervisor.
func (a *Agent) SendMessage(ctx context.Context, text string) Result {
	res := Result{Error: ErrCrashed}
	if err := a.submit(func() {
		res = a.turn(ctx, text)
	}); err != nil {
		return Result{Error: err}
	}
	return res
}

// AssignTask hands the agent a task and prefetches related keeper
// context. Asynchronous.
func (a *Agent) AssignTask(task *types.TeamTask) {
	a.submitAsync(func() {
		a.task = task
		a.prefetchKeeperContext(task.Description)
	})
}

// PeerMessage injects a message from a teammate. Asynchronous; the
// text is seen on the agent's next turn.
func (a *Agent) PeerMessage(from, content string) {
	a.submitAsync(func() {
		a.append(types.Message{
			Role:    types.RoleUser,
			Content: fmt.Sprintf("[Peer %s]: %s", from, content),
		})
	})
}

// GetStatus returns a snapshot of the agent
func (a *Agent) GetStatus() Status {
	var s Status
	if err := a.submit(func() {
		s = Status{
			Name:         a.name,
			Role:         a.role.Name,
			Status:       a.status,
			Model:        a.model,
			MessageCount: len(a.messages),
		}
		if a.task != nil {
			s.TaskID = a.task.ID
		}
	}); err != nil {
		return Status{Name: a.name, Status: types.StatusError}
	}
	return s
}

// GetHistory returns a copy of the conversation
func (a *Agent) GetHistory() []types.Message {
	var history []types.Message
	a.submit(func() {
		history = append([]types.Message(nil), a.messages...)
	})
	return history
}

// ChangeRole swaps the agent's role definition. With requireApproval
// a role_change_request is broadcast first; the request is advisory
// and does not block the swap.
func (a *Agent) ChangeRole(newRole roles.Role, requireApproval bool) error {
	return a.submit(func() {
		old := a.role.Name
		if requireApproval {
			a.broadcastTeam(pubsub.MsgRoleChangeRequest, map[string]any{
				"name":   a.name,
				"old":    old,
				"new":    newRole.Name,
				"req_id": uuid.NewString(),
			})
		}
		a.role = newRole
		if a.deps.Table != nil {
			a.deps.Table.UpdateAgent(a.name, func(info *types.AgentInfo) {
				info.Role = newRole.Name
			})
		}
		a.broadcastTeam(pubsub.MsgRoleChanged, map[string]any{
			"name": a.name,
			"old":  old,
			"new":  newRole.Name,
		})
	})
}

// turn runs the reasoning loop for one user message
func (a *Agent) turn(ctx context.Context, text string) Result {
	a.append(types.Message{Role: types.RoleUser, Content: text})
	a.setStatus(types.StatusWorking)
	defer a.setStatus(types.StatusIdle)

	system := a.buildSystemPrompt()
	specs := a.toolSpecs()

	for iter := 0; iter < a.role.MaxIterations; iter++ {
		if !a.acquireModelSlot(ctx) {
			return Result{Error: ctx.Err()}
		}
		a.broadcastTeam(pubsub.MsgLLMRequestStart, map[string]any{
			"name":  a.name,
			"model": a.model,
		})
		a.deps.Router.RecordAttempt(a.model)

		res, err := a.deps.Client.Call(ctx, a.model, a.messages, specs, modelclient.CallOptions{
			SystemPrompt: system,
		})
		if err != nil {
			if retry := a.handleModelError(err); retry {
				continue
			}
			return Result{Error: err}
		}

		if abort := a.accountUsage(res.Usage); abort != nil {
			return Result{Error: abort}
		}

		if len(res.ToolCalls) > 0 {
			a.append(types.Message{Role: types.RoleAssistant, ToolCalls: res.ToolCalls})
			for _, call := range res.ToolCalls {
				a.executeTool(call)
			}
			continue
		}

		// Final answer
		a.append(types.Message{Role: types.RoleAssistant, Content: res.Text})
		if a.task != nil {
			a.deps.Router.RecordSuccess(a.teamID, a.name, a.task.ID, a.model)
		}
		return Result{Text: res.Text}
	}
	return Result{Error: ErrMaxIterations}
}

// acquireModelSlot waits until the provider bucket admits the call.
// Returns false when ctx is canceled before admission; the caller must
// not issue the model call in that case.
func (a *Agent) acquireModelSlot(ctx context.Context) bool {
	provider := modelrouter.ProviderOf(a.model)
	for {
		ok, waitMS := a.deps.Limiter.Acquire(provider, acquireEstimate)
		if ok {
			return true
		}
		select {
		case <-time.After(time.Duration(waitMS) * time.Millisecond):
		case <-ctx.Done():
			return false
		}
	}
}

// handleModelError attempts a single escalation per turn. Returns
// true when the loop should retry with the new model.
func (a *Agent) handleModelError(err error) bool {
	log.Printf("[AGENT] %s/%s model call failed: %v", a.teamID, a.name, err)
	if a.task == nil || a.failureCount >= 1 {
		return false
	}
	a.deps.Router.RecordFailure(a.teamID, a.name, a.task.ID)
	if !a.deps.Router.ShouldEscalate(a.teamID, a.name, a.task.ID) || !a.deps.Router.EscalationEnabled() {
		return false
	}

	next, escErr := a.deps.Router.Escalate(a.model)
	if escErr != nil {
		return false
	}
	a.deps.Tracker.RecordEscalation(a.teamID, a.name, a.model, next)
	a.broadcastTeam(pubsub.MsgAgentEscalation, map[string]any{
		"name": a.name,
		"old":  a.model,
		"new":  next,
	})
	a.model = next
	a.failureCount++
	return true
}

// accountUsage records one call's spend. Budget exceedance warns by
// default; with HardAbort it fails the turn.
func (a *Agent) accountUsage(usage types.Usage) error {
	rec := cost.UsageRecord{
		InputTokens:  usage.InputTokens,
		OutputTokens: usage.OutputTokens,
		CostUSD:      usage.TotalCost,
		Model:        a.model,
	}
	callCost := cost.ResolveCost(rec)

	verdict := a.deps.Limiter.RecordUsage(a.teamID, a.name, int64(usage.TotalTokens()), callCost)
	a.deps.Tracker.RecordUsage(a.teamID, a.name, rec)
	a.deps.Tracker.RecordCall(a.teamID, a.name, rec)

	team := a.deps.Limiter.TeamUsage(a.teamID)
	if team.Limit > 0 && team.Spent >= budgetWarnFraction*team.Limit {
		a.broadcastTeam(pubsub.MsgBudgetWarning, map[string]any{
			"team_id": a.teamID,
			"spent":   team.Spent,
			"limit":   team.Limit,
		})
	}

	if verdict != ratelimit.VerdictOK {
		log.Printf("[AGENT] %s/%s budget exceeded: %s", a.teamID, a.name, verdict)
		if a.deps.HardAbort {
			return fmt.Errorf("budget exceeded: %s", verdict)
		}
	}
	return nil
}

// executeTool runs one tool call with the injected invocation context
// and a hard timeout, appending the result or error as a tool message.
func (a *Agent) executeTool(call types.ToolCall) {
	a.broadcastTeam(pubsub.MsgToolExecuting, map[string]any{
		"name": a.name,
		"tool": call.Name,
	})

	output, err := a.runTool(call)
	content := output
	if err != nil {
		content = "error: " + err.Error()
	}
	a.append(types.Message{
		Role:       types.RoleTool,
		ToolCallID: call.ID,
		Content:    content,
	})
	a.broadcastTeam(pubsub.MsgToolComplete, map[string]any{
		"name": a.name,
		"tool": call.Name,
		"ok":   err == nil,
	})
}

func (a *Agent) runTool(call types.ToolCall) (string, error) {
	if a.deps.Tools == nil {
		return "", tools.ErrUnknownTool
	}
	allowed := false
	for _, name := range a.role.Tools {
		if name == call.Name {
			allowed = true
			break
		}
	}
	if !allowed {
		return "", fmt.Errorf("%w: %s not granted to role %s", tools.ErrUnknownTool, call.Name, a.role.Name)
	}

	tc := tools.Context{
		ProjectPath: a.projectPath,
		SessionID:   a.sessionID,
		TeamID:      a.teamID,
		AgentName:   a.name,
		Snapshot:    append([]types.Message(nil), a.messages...),
	}

	type toolOut struct {
		output string
		err    error
	}
	ch := make(chan toolOut, 1)
	go func() {
		out, err := a.deps.Tools.Invoke(call.Name, call.Arguments, tc)
		ch <- toolOut{output: out, err: err}
	}()
	select {
	case out := <-ch:
		return out.output, out.err
	case <-time.After(toolTimeout):
		return "", fmt.Errorf("tool %s timed out after %s", call.Name, toolTimeout)
	}
}

func (a *Agent) setStatus(status types.AgentStatus) {
	a.status = status
	if a.deps.Table != nil {
		a.deps.Table.UpdateAgent(a.name, func(info *types.AgentInfo) {
			info.Status = status
		})
	}
	a.broadcastTeam(pubsub.MsgAgentStatus, map[string]any{
		"name":   a.name,
		"status": string(status),
	})
}

func (a *Agent) append(msg types.Message) {
	a.messages = append(a.messages, msg)
}

func (a *Agent) broadcastTeam(msgType pubsub.MessageType, payload map[string]any) {
	a.deps.Bus.Broadcast(pubsub.TeamTopic(a.teamID), pubsub.NewMessage(msgType, a.name, payload))
}

func (a *Agent) toolSpecs() []modelclient.ToolSpec {
	if a.deps.Tools == nil {
		return nil
	}
	return a.deps.Tools.Specs(a.role.Tools)
}

// prefetchKeeperContext injects the best keeper match for a task
// description as a system hint.
func (a *Agent) prefetchKeeperContext(description string) {
	if a.deps.Keepers == nil || description == "" {
		return
	}
	var best *keeper.Keeper
	bestScore := 0
	for _, k := range a.deps.Keepers(a.teamID) {
		if score := keeper.WordOverlap(k.Topic(), description); score > bestScore {
			best, bestScore = k, score
		}
	}
	if best == nil {
		return
	}
	hint := best.Fetch(context.Background(), description)
	if hint == "" {
		return
	}
	a.append(types.Message{
		Role:    types.RoleSystem,
		Content: fmt.Sprintf("Relevant offloaded context (%s):\n%s", best.IndexEntry(), hint),
	})
}

package transport

import _ "embed"

// DeltasSubscription is the subscription document for the workflow table.
// It takes one variable, workflowId.
//
//go:embed queries/deltas.graphql
var DeltasSubscription string

// DeltasOperation is the operation name in DeltasSubscription.
const DeltasOperation = "OnWorkflowTableDeltas"

// Command is a workflow-level mutation.
type Command string

const (
	CommandHold    Command = "hold"
	CommandRelease Command = "release"
	CommandStop    Command = "stop"
)

const holdWorkflowMutation = `mutation HoldWorkflowMutation($workflow: String!) {
  holdWorkflow (workflows: [$workflow]) {
    result
  }
}`

const releaseWorkflowMutation = `mutation ReleaseWorkflowMutation($workflow: String!) {
  releaseWorkflow (workflows: [$workflow]) {
    result
  }
}`

const stopWorkflowMutation = `mutation StopWorkflowMutation($workflow: String!) {
  stopWorkflow (workflows: [$workflow]) {
    result
  }
}`

// mutation pairs a document with the response field holding its result.
type mutation struct {
	field    string
	document string
}

var mutations = map[Command]mutation{
	CommandHold:    {field: "holdWorkflow", document: holdWorkflowMutation},
	CommandRelease: {field: "releaseWorkflow", document: releaseWorkflowMutation},
	CommandStop:    {field: "stopWorkflow", document: stopWorkflowMutation},
}

// ParseCommand returns the command named s.
func ParseCommand(s string) (Command, error) {
	cmd := Command(s)
	if _, ok := mutations[cmd]; !ok {
		return "", &UnknownCommandError{Name: s}
	}
	return cmd, nil
}

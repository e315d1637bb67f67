package orchestrator

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/compose"

	nodex "github.com/tanpawarit/chative-bank-onboarding/agent/nodes"
)

type stageFunc func(ctx context.Context, in *nodex.GraphState, deps nodex.Deps) (*nodex.GraphState, error)

// compileHandleMessageGraph wires the workflow:
// validate_request -> load_session -> classify_intent -> route, then the stage chain
// extract_license -> verify_license -> screen_blacklist -> open_account, where each
// stage may hand off to finalize_reply early.
func (o *Orchestrator) compileHandleMessageGraph(
	ctx context.Context,
) (compose.Runnable[nodex.GraphInput, nodex.GraphOutput], error) {
	graph := compose.NewGraph[nodex.GraphInput, nodex.GraphOutput]()

	if err := graph.AddLambdaNode(nodex.NodeValidateRequest,
		compose.InvokableLambda(func(ctx context.Context, in nodex.GraphInput) (*nodex.GraphState, error) {
			return nodex.ValidateRequest(in, o.now)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node %s: %w", nodex.NodeValidateRequest, err)
	}

	if err := graph.AddLambdaNode(nodex.NodeLoadSession,
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.LoadSession(ctx, in, o.store)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node %s: %w", nodex.NodeLoadSession, err)
	}

	if err := graph.AddLambdaNode(nodex.NodeClassifyIntent,
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.ClassifyIntent(ctx, in, o.models.Classifier())
		}),
	); err != nil {
		return nil, fmt.Errorf("add node %s: %w", nodex.NodeClassifyIntent, err)
	}

	if err := graph.AddLambdaNode(nodex.NodeRoute,
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.Route(in)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node %s: %w", nodex.NodeRoute, err)
	}

	stages := []struct {
		name string
		fn   stageFunc
	}{
		{nodex.NodeExtractLicense, nodex.ExtractLicense},
		{nodex.NodeVerifyLicense, nodex.VerifyLicense},
		{nodex.NodeScreenBlacklist, nodex.ScreenBlacklist},
		{nodex.NodeOpenAccount, nodex.OpenAccount},
	}
	for _, stage := range stages {
		fn := stage.fn
		if err := graph.AddLambdaNode(stage.name,
			compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
				return fn(ctx, in, o.deps)
			}),
		); err != nil {
			return nil, fmt.Errorf("add node %s: %w", stage.name, err)
		}
	}

	if err := graph.AddLambdaNode(nodex.NodeFinalizeReply,
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (nodex.GraphOutput, error) {
			return nodex.FinalizeReply(in)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node %s: %w", nodex.NodeFinalizeReply, err)
	}

	edges := [][2]string{
		{compose.START, nodex.NodeValidateRequest},
		{nodex.NodeValidateRequest, nodex.NodeLoadSession},
		{nodex.NodeLoadSession, nodex.NodeClassifyIntent},
		{nodex.NodeClassifyIntent, nodex.NodeRoute},
		{nodex.NodeOpenAccount, nodex.NodeFinalizeReply},
		{nodex.NodeFinalizeReply, compose.END},
	}
	for _, edge := range edges {
		if err := graph.AddEdge(edge[0], edge[1]); err != nil {
			return nil, fmt.Errorf("add edge %s->%s: %w", edge[0], edge[1], err)
		}
	}

	branches := map[string][]string{
		nodex.NodeRoute: {
			nodex.NodeExtractLicense,
			nodex.NodeVerifyLicense,
			nodex.NodeScreenBlacklist,
			nodex.NodeOpenAccount,
			nodex.NodeFinalizeReply,
		},
		nodex.NodeExtractLicense:  {nodex.NodeVerifyLicense, nodex.NodeFinalizeReply},
		nodex.NodeVerifyLicense:   {nodex.NodeScreenBlacklist, nodex.NodeFinalizeReply},
		nodex.NodeScreenBlacklist: {nodex.NodeOpenAccount, nodex.NodeFinalizeReply},
	}
	for from, targets := range branches {
		ends := make(map[string]bool, len(targets))
		for _, target := range targets {
			ends[target] = true
		}
		branch := compose.NewGraphBranch(func(ctx context.Context, in *nodex.GraphState) (string, error) {
			return nodex.NextNode(in)
		}, ends)
		if err := graph.AddBranch(from, branch); err != nil {
			return nil, fmt.Errorf("add branch %s: %w", from, err)
		}
	}

	runner, err := graph.Compile(ctx, compose.WithGraphName("orchestrator.handle_message"))
	if err != nil {
		return nil, fmt.Errorf("compile orchestrator graph: %w", err)
	}
	return runner, nil
}

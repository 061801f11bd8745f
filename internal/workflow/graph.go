package workflow

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"resume-agent-go/internal/logger"
)

var wfTracer = otel.Tracer("resume-agent-go/workflow")

// errHalt 节点请求提前正常结束图的哨兵。
// 结果已经写在状态上，后续节点全部跳过。门控拒绝不走这里，走错误返回。
var errHalt = errors.New("workflow halted")

// Node 图中的一个节点：固定名字 + 对状态的一次变换
type Node[S any] struct {
	Name string
	Run  func(ctx context.Context, state *S) error
}

// Graph 一条任务流水线：按声明顺序执行的节点序列。
// 编译(构造)一次后可被并发调用共享，节点只能修改本次调用的状态实例。
type Graph[S any] struct {
	name  string
	nodes []Node[S]
}

// NewGraph 编译一条图
func NewGraph[S any](name string, nodes ...Node[S]) *Graph[S] {
	return &Graph[S]{name: name, nodes: nodes}
}

// Execute 在单个状态实例上顺序执行全部节点。
// 节点返回errHalt时提前正常结束；其余错误带节点名向上传播。
func (g *Graph[S]) Execute(ctx context.Context, state *S) error {
	ctx, span := wfTracer.Start(ctx, "Workflow."+g.name)
	defer span.End()
	span.SetAttributes(attribute.Int("graph.nodes", len(g.nodes)))

	for _, node := range g.nodes {
		nodeCtx, nodeSpan := wfTracer.Start(ctx, "Workflow."+g.name+"."+node.Name)
		err := node.Run(nodeCtx, state)
		if err != nil && !errors.Is(err, errHalt) {
			nodeSpan.RecordError(err)
			nodeSpan.SetStatus(codes.Error, err.Error())
			nodeSpan.End()
			span.SetStatus(codes.Error, err.Error())
			return fmt.Errorf("节点 %s 执行失败: %w", node.Name, err)
		}
		nodeSpan.SetStatus(codes.Ok, "")
		nodeSpan.End()

		if errors.Is(err, errHalt) {
			logger.Ctx(ctx).Debug().Str("graph", g.name).Str("node", node.Name).Msg("流水线提前结束")
			span.AddEvent("graph_halted_at_" + node.Name)
			break
		}
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

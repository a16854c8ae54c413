package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/gogf/gf/v2/frame/g"
	"github.com/gogf/gf/v2/net/ghttp"
	"github.com/gogf/gf/v2/os/gcmd"

	"github.com/Malowking/sqlgo/internal/controller/sqlgo"
	"github.com/Malowking/sqlgo/internal/service"
	nl2sqlService "github.com/Malowking/sqlgo/nl2sql/service"
)

var (
	Main = gcmd.Command{
		Name:  "main",
		Usage: "main",
		Brief: "start http server",
		Func: func(ctx context.Context, parser *gcmd.Parser) (err error) {
			comps, err := initComponents(ctx)
			if err != nil {
				return err
			}
			defer shutdown(ctx, comps)

			s := g.Server()
			s.Group("/api", func(group *ghttp.RouterGroup) {
				group.Middleware(MiddlewareHandlerResponse, ghttp.MiddlewareCORS)
				group.Bind(
					sqlgo.NewV1(),
				)
			})
			s.Run()
			return nil
		},
	}

	// Ask 命令行单次提问，输出完整的 JSON 响应
	Ask = gcmd.Command{
		Name:  "ask",
		Usage: "ask -d airlines [-s session] -q \"question\"",
		Brief: "run one question through the pipeline and print the response",
		Arguments: []gcmd.Argument{
			{Name: "domain", Short: "d", Brief: "domain id, optional when the session is bound"},
			{Name: "session", Short: "s", Brief: "session id"},
			{Name: "question", Short: "q", Brief: "natural language question"},
		},
		Func: func(ctx context.Context, parser *gcmd.Parser) (err error) {
			question := parser.GetOpt("question").String()
			if question == "" {
				// 允许 ask -d airlines how many flights ...
				args := parser.GetArgAll()
				if len(args) > 2 {
					question = strings.Join(args[2:], " ")
				}
			}

			comps, err := initComponents(ctx)
			if err != nil {
				return err
			}
			defer shutdown(ctx, comps)

			resp := comps.Pipeline.Run(ctx, nl2sqlService.Question{
				Text:      question,
				DomainID:  parser.GetOpt("domain").String(),
				SessionID: parser.GetOpt("session").String(),
			})
			out, err := sonic.ConfigStd.MarshalIndent(resp, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			if !resp.OK() {
				return fmt.Errorf("%s: %s", resp.Failure.Kind, resp.Failure.Message)
			}
			return nil
		},
	}

	// Setup 重建领域表并导入初始化数据
	Setup = gcmd.Command{
		Name:  "setup",
		Usage: "setup [-d airlines,bikes]",
		Brief: "recreate domain tables and load their seed files from nl2sql.dataDir",
		Arguments: []gcmd.Argument{
			{Name: "domain", Short: "d", Brief: "comma separated domain ids, all seeded domains when empty"},
		},
		Func: func(ctx context.Context, parser *gcmd.Parser) (err error) {
			var only []string
			if v := parser.GetOpt("domain").String(); v != "" {
				for _, id := range strings.Split(v, ",") {
					if id = strings.TrimSpace(id); id != "" {
						only = append(only, id)
					}
				}
			}

			stats, err := service.Setup(ctx, only)
			for id, st := range stats {
				g.Log().Infof(ctx, "Setup finished for %s: dimensions=%v %s=%d rows", id, st.Dimensions, st.FactTable, st.FactRows)
			}
			return err
		},
	}
)

func init() {
	if err := Main.AddCommand(&Ask, &Setup); err != nil {
		panic(err)
	}
}

// shutdown 释放数据源和缓存连接
func shutdown(ctx context.Context, comps *service.Components) {
	comps.Close()
	closeRedis(ctx)
}

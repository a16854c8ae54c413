package main

import (
	_ "github.com/gogf/gf/contrib/drivers/mysql/v2"
	_ "github.com/gogf/gf/contrib/drivers/pgsql/v2"
	"github.com/gogf/gf/v2/os/gctx"

	"github.com/Malowking/sqlgo/internal/cmd"
)

func main() {
	cmd.Main.Run(gctx.GetInitCtx())
}

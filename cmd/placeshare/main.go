// Command placeshare は場所共有サービスのWebサーバー、ワーカー、マイグレーションを起動する。
//
// 使い方:
//
//	placeshare [serve|worker|migrate [down [N]]|healthcheck]
package main

import (
	"fmt"
	"os"

	"github.com/hitoshi/placeshare/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "placeshare: %v\n", err)
		os.Exit(1)
	}
}

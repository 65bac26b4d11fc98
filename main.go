package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"

	"wechat_article_autopilot/config"
	"wechat_article_autopilot/pipeline"
	"wechat_article_autopilot/server"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	configPath := flag.String("config", "config/config.json", "path to config.json")
	addr := flag.String("addr", "", "http listen address (overrides config.server_addr)")
	runOnce := flag.Bool("run-once", false, "run the full pipeline once and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	app, err := pipeline.NewApp(*configPath, cfg, log.Default())
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	// 单次执行模式：由外部定时器(cron/systemd timer)触发。
	if *runOnce {
		result, err := app.Run(context.Background())
		if err != nil {
			log.Printf("[cli] pipeline halted at stage=%s article=%s: %v", result.Stage, result.ArticleID, err)
			os.Exit(1)
		}
		log.Printf("[cli] pipeline done article=%s", result.ArticleID)
		fmt.Println(result.ArticleID)
		return
	}

	srv, err := server.New(app)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	listen := cfg.ServerAddr
	if *addr != "" {
		listen = *addr
	}
	if listen == "" {
		listen = ":8080"
	}
	log.Printf("Starting web server on %s", listen)
	if err := http.ListenAndServe(listen, srv.Routes()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

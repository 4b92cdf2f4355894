package main

import (
	"context"
	"fmt"
	r "math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go-bpindex/config"
	"go-bpindex/pkg/bptree"
	"go-bpindex/pkg/engine"
)

var seed = time.Now().UnixMilli()
var rand = r.New(r.NewSource(seed))

const (
	table = 1
	count = 1000
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	dir, err := os.MkdirTemp("", "bpindex-")
	if err != nil {
		fatal(err)
	}
	defer os.RemoveAll(dir)

	configs := config.New()
	configs.EngineConfig.BaseDir = dir
	e, err := engine.Open(configs.EngineConfig)
	if err != nil {
		fatal(err)
	}
	defer func() {
		if err := e.Close(context.Background()); err != nil {
			fmt.Println("error on gracefully stopping:", err)
		}
	}()

	tree, err := engine.NewIndexByName[int64, int64](e, "long", "long", true)
	if err != nil {
		fatal(err)
	}
	async, err := engine.NewAsyncIndex(e, tree)
	if err != nil {
		fatal(err)
	}

	fmt.Println("seed:", seed)
	for _, k := range rand.Perm(count) {
		if _, err := async.Add(ctx, table, int64(k), int64(k)*int64(k)); err != nil {
			fatalf("failed to add %d: %v\n", k, err)
		}
	}
	for _, k := range rand.Perm(count)[:count/2] {
		if _, err := async.Remove(ctx, table, int64(k)); err != nil {
			fatalf("failed to remove %d: %v\n", k, err)
		}
	}

	size, err := async.Size(ctx, table)
	if err != nil {
		fatal(err)
	}
	fmt.Println("size:", size)

	it, err := async.Iterator(ctx, table, bptree.Asc)
	if err != nil {
		fatal(err)
	}
	for i := 0; i < 10 && it.Next(); i++ {
		fmt.Printf("%d -> %d\n", it.Key(), it.Value())
	}
	if err := it.Err(); err != nil {
		fatal(err)
	}

	if err := tree.Verify(ctx, table); err != nil {
		fatal(err)
	}
	if err := tree.Dump(ctx, table, os.Stdout); err != nil {
		fatal(err)
	}
}

func fatal(val interface{}) {
	fmt.Println(val)
	os.Exit(1)
}

func fatalf(format string, values ...interface{}) {
	fmt.Printf(format, values...)
	os.Exit(1)
}

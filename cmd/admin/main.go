// admin is the operator CLI: list instances on disk, query the sqlite
// read-model index, and hit the loopback-only server endpoints.
package main

import (
	"fmt"
	"os"
	"path/filepath"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "db":
			dbCmd(os.Args[2:])
			return
		case "digest":
			digestCmd(os.Args[2:])
			return
		case "export":
			exportCmd(os.Args[2:])
			return
		case "list":
			listCmd(os.Args[2:])
			return
		case "-h", "--help", "help":
			usage()
			return
		}
	}
	listCmd(os.Args[1:])
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage:
  admin list   [-data ./data] [-instance ID]
  admin db     [-data ./data] [-instance ID|-db PATH] ops|bought|prices|snapshots|meta
  admin digest [-url http://127.0.0.1:8080]
  admin export [-url http://127.0.0.1:8080]`)
}

func listCmd(args []string) {
	fs := newFlagSet("list")
	dataDir := fs.String("data", "./data", "runtime data directory")
	instance := fs.String("instance", "", "instance id (optional)")
	_ = fs.Parse(args)

	base := filepath.Join(*dataDir, "instances")
	if *instance != "" {
		base = filepath.Join(base, *instance)
	}
	entries, err := os.ReadDir(base)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read:", err)
		os.Exit(1)
	}
	for _, e := range entries {
		fmt.Println(e.Name())
	}
}

package main

import (
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

func newFlagSet(name string) *flag.FlagSet {
	return flag.NewFlagSet(name, flag.ExitOnError)
}

func dbCmd(args []string) {
	fs := newFlagSet("db")
	dataDir := fs.String("data", "./data", "runtime data directory")
	instance := fs.String("instance", "", "instance id (required unless -db)")
	dbPath := fs.String("db", "", "sqlite db path (optional)")
	account := fs.String("account", "", "account filter (ops)")
	resource := fs.String("resource", "", "resource symbol filter (prices)")
	limit := fs.Int("limit", 20, "result limit")
	_ = fs.Parse(args)

	q := "snapshots"
	if fs.NArg() > 0 {
		q = strings.TrimSpace(fs.Arg(0))
	}
	if *limit <= 0 {
		*limit = 20
	}

	path := strings.TrimSpace(*dbPath)
	if path == "" {
		if strings.TrimSpace(*instance) == "" {
			fmt.Fprintln(os.Stderr, "missing -instance or -db")
			os.Exit(2)
		}
		path = filepath.Join(*dataDir, "instances", *instance, "index", "econ.sqlite")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	defer db.Close()

	switch q {
	case "snapshots":
		rows, err := db.Query(`SELECT op_seq,path,tiles,digest,recorded_at FROM snapshots ORDER BY op_seq DESC LIMIT ?`, *limit)
		if err != nil {
			fmt.Fprintln(os.Stderr, "query:", err)
			os.Exit(1)
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				OpSeq      int64  `json:"op_seq"`
				Path       string `json:"path"`
				Tiles      int    `json:"tiles"`
				Digest     string `json:"digest"`
				RecordedAt string `json:"recorded_at"`
			}
			if err := rows.Scan(&r.OpSeq, &r.Path, &r.Tiles, &r.Digest, &r.RecordedAt); err != nil {
				fmt.Fprintln(os.Stderr, "scan:", err)
				os.Exit(1)
			}
			printJSON(r)
		}
		checkRows(rows.Err())

	case "ops":
		query := `SELECT seq,now,account,type,ok,code,digest FROM ops ORDER BY seq DESC LIMIT ?`
		qargs := []any{*limit}
		if strings.TrimSpace(*account) != "" {
			query = `SELECT seq,now,account,type,ok,code,digest FROM ops WHERE account=? ORDER BY seq DESC LIMIT ?`
			qargs = []any{strings.TrimSpace(*account), *limit}
		}
		rows, err := db.Query(query, qargs...)
		if err != nil {
			fmt.Fprintln(os.Stderr, "query:", err)
			os.Exit(1)
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				Seq     int64          `json:"seq"`
				Now     int64          `json:"now"`
				Account string         `json:"account"`
				Type    string         `json:"type"`
				OK      bool           `json:"ok"`
				Code    sql.NullString `json:"-"`
				CodeStr string         `json:"code,omitempty"`
				Digest  string         `json:"digest"`
			}
			if err := rows.Scan(&r.Seq, &r.Now, &r.Account, &r.Type, &r.OK, &r.Code, &r.Digest); err != nil {
				fmt.Fprintln(os.Stderr, "scan:", err)
				os.Exit(1)
			}
			r.CodeStr = r.Code.String
			printJSON(r)
		}
		checkRows(rows.Err())

	case "bought":
		rows, err := db.Query(`SELECT seq,tile_id,x,y,buyer,price FROM tiles_bought ORDER BY seq DESC LIMIT ?`, *limit)
		if err != nil {
			fmt.Fprintln(os.Stderr, "query:", err)
			os.Exit(1)
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				Seq    int64  `json:"seq"`
				TileID string `json:"tile_id"`
				X      int    `json:"x"`
				Y      int    `json:"y"`
				Buyer  string `json:"buyer"`
				Price  int64  `json:"price"`
			}
			if err := rows.Scan(&r.Seq, &r.TileID, &r.X, &r.Y, &r.Buyer, &r.Price); err != nil {
				fmt.Fprintln(os.Stderr, "scan:", err)
				os.Exit(1)
			}
			printJSON(r)
		}
		checkRows(rows.Err())

	case "prices":
		query := `SELECT now,resource,price,supply,funds FROM price_history ORDER BY now DESC LIMIT ?`
		qargs := []any{*limit}
		if strings.TrimSpace(*resource) != "" {
			query = `SELECT now,resource,price,supply,funds FROM price_history WHERE resource=? ORDER BY now DESC LIMIT ?`
			qargs = []any{strings.TrimSpace(*resource), *limit}
		}
		rows, err := db.Query(query, qargs...)
		if err != nil {
			fmt.Fprintln(os.Stderr, "query:", err)
			os.Exit(1)
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				Now      int64  `json:"now"`
				Resource string `json:"resource"`
				Price    int64  `json:"price"`
				Supply   int64  `json:"supply"`
				Funds    int64  `json:"funds"`
			}
			if err := rows.Scan(&r.Now, &r.Resource, &r.Price, &r.Supply, &r.Funds); err != nil {
				fmt.Fprintln(os.Stderr, "scan:", err)
				os.Exit(1)
			}
			printJSON(r)
		}
		checkRows(rows.Err())

	case "meta":
		rows, err := db.Query(`SELECT key,value FROM meta ORDER BY key`)
		if err != nil {
			fmt.Fprintln(os.Stderr, "query:", err)
			os.Exit(1)
		}
		defer rows.Close()
		for rows.Next() {
			var k, v string
			if err := rows.Scan(&k, &v); err != nil {
				fmt.Fprintln(os.Stderr, "scan:", err)
				os.Exit(1)
			}
			printJSON(map[string]string{"key": k, "value": v})
		}
		checkRows(rows.Err())

	default:
		fmt.Fprintln(os.Stderr, "unknown query:", q)
		fmt.Fprintln(os.Stderr, "usage: admin db [-data ./data] [-instance ID|-db PATH] ops|bought|prices|snapshots|meta")
		os.Exit(2)
	}
}

func checkRows(err error) {
	if err != nil {
		fmt.Fprintln(os.Stderr, "rows:", err)
		os.Exit(1)
	}
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

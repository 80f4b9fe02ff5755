// Copyright 2019 The Go Cloud Development Kit Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// lbcli demonstrates the use of the lightblue package in a simple
// command-line application.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"strings"

	"github.com/google/subcommands"
	"github.com/joho/godotenv"
	"lightblue.dev/lightblue"
	"lightblue.dev/lightblue/lbrest"
)

const helpSuffix = `

  Entity URLs look like lightblue://<entity>?version=<version>.
  The service location comes from LIGHTBLUE_DATA_URL and
  LIGHTBLUE_METADATA_URL, optionally loaded from a .env file
  (see -env).
`

func main() {
	log.SetFlags(0)
	log.SetPrefix("lbcli: ")
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("lbcli", flag.ContinueOnError)
	fs.SetOutput(stderr)
	envFile := fs.String("env", "", "load environment variables from this file (default .env, if present)")
	verbose := fs.Bool("v", false, "log every request")
	cdr := newCommander(fs, stdout)
	if err := fs.Parse(args); err != nil {
		return int(subcommands.ExitUsageError)
	}
	if err := loadEnv(*envFile); err != nil {
		fmt.Fprintf(stderr, "lbcli: %v\n", err)
		return int(subcommands.ExitFailure)
	}
	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level})))
	return int(cdr.Execute(ctx))
}

func newCommander(fs *flag.FlagSet, out io.Writer) *subcommands.Commander {
	cdr := subcommands.NewCommander(fs, "lbcli")
	cdr.Output = out
	cdr.Register(cdr.HelpCommand(), "")
	cdr.Register(&schemaCmd{out: out}, "")
	cdr.Register(&findCmd{out: out}, "")
	cdr.Register(&insertCmd{out: out}, "")
	cdr.Register(&updateCmd{out: out}, "")
	cdr.Register(&deleteCmd{out: out}, "")
	return cdr
}

// loadEnv loads file, or .env when file is empty and .env exists.
func loadEnv(file string) error {
	if file == "" {
		if _, err := os.Stat(".env"); err != nil {
			return nil
		}
		file = ".env"
	}
	return godotenv.Load(file)
}

// pairs collects repeated field=value flags. Values that parse as JSON keep
// their JSON type; anything else is a string.
type pairs []lightblue.Triple

func (p *pairs) String() string {
	var s []string
	for _, t := range *p {
		s = append(s, fmt.Sprintf("%s%s%v", t.Field, t.Op, t.Value))
	}
	return strings.Join(s, ",")
}

// Set splits v at the first operator after a non-empty field name.
func (p *pairs) Set(v string) error {
	for i := 1; i < len(v); i++ {
		for _, op := range []string{"!=", "<=", ">=", "=", "<", ">"} {
			if strings.HasPrefix(v[i:], op) {
				*p = append(*p, lightblue.Where(v[:i], op, parseValue(v[i+len(op):])))
				return nil
			}
		}
	}
	return fmt.Errorf("%q is not of the form field=value", v)
}

func (p pairs) values() map[string]any {
	m := map[string]any{}
	for _, t := range p {
		m[t.Field] = t.Value
	}
	return m
}

func parseValue(s string) any {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return s
	}
	return v
}

// fields collects a comma-separated or repeated list of field names.
type fields []string

func (f *fields) String() string { return strings.Join(*f, ",") }

func (f *fields) Set(v string) error {
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			*f = append(*f, s)
		}
	}
	return nil
}

func printJSON(out io.Writer, v any) subcommands.ExitStatus {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		log.Printf("Failed to print result: %v", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func openEntity(ctx context.Context, f *flag.FlagSet) (*lightblue.Entity, subcommands.ExitStatus) {
	if f.NArg() < 1 {
		f.Usage()
		return nil, subcommands.ExitUsageError
	}
	cfg, err := lbrest.ConfigFromEnv()
	if err != nil {
		log.Printf("Failed to configure service: %v", err)
		return nil, subcommands.ExitFailure
	}
	opener, err := setupOpener(cfg)
	if err != nil {
		log.Printf("Failed to open service: %v", err)
		return nil, subcommands.ExitFailure
	}
	mux := new(lightblue.URLMux)
	mux.RegisterEntity(lbrest.Scheme, opener)
	e, err := mux.OpenEntity(ctx, f.Arg(0))
	if err != nil {
		log.Printf("Failed to open entity: %v", err)
		return nil, subcommands.ExitFailure
	}
	return e, subcommands.ExitSuccess
}

type schemaCmd struct {
	out     io.Writer
	version string
}

func (*schemaCmd) Name() string     { return "schema" }
func (*schemaCmd) Synopsis() string { return "Print the schema of an entity" }
func (*schemaCmd) Usage() string {
	return `schema [-version <version>] <entity URL>

  Print the JSON schema of the entity.

  Example:
    lbcli schema lightblue://user?version=1.0.0` + helpSuffix
}

func (cmd *schemaCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&cmd.version, "version", "", "schema version, overriding the URL's")
}

func (cmd *schemaCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	e, status := openEntity(ctx, f)
	if e == nil {
		return status
	}
	schema, err := e.GetSchema(ctx, cmd.version)
	if err != nil {
		log.Printf("Failed to get schema: %v", err)
		return subcommands.ExitFailure
	}
	var v any
	if err := json.Unmarshal(schema, &v); err != nil {
		log.Printf("Failed to decode schema: %v", err)
		return subcommands.ExitFailure
	}
	return printJSON(cmd.out, v)
}

type findCmd struct {
	out       io.Writer
	where     pairs
	fields    fields
	recursive fields
	createdBy string
	pageSize  int
	first     bool
}

func (*findCmd) Name() string     { return "find" }
func (*findCmd) Synopsis() string { return "Find documents of an entity" }
func (*findCmd) Usage() string {
	return `find [-q field=value]... [-f field,...] [-r field,...] [-page <n>] [-first] <entity URL>

  Print the documents of the entity matching all the filters.

  Example:
    lbcli find -q login=bob -f login,name lightblue://user` + helpSuffix
}

func (cmd *findCmd) SetFlags(f *flag.FlagSet) {
	f.Var(&cmd.where, "q", "filter as field=value (also !=, <, >, <=, >=); repeatable")
	f.Var(&cmd.fields, "f", "fields to return")
	f.Var(&cmd.recursive, "r", "fields to return with everything beneath them")
	f.StringVar(&cmd.createdBy, "created-by", "", "only documents created by this service")
	f.IntVar(&cmd.pageSize, "page", 0, "fetch results this many at a time")
	f.BoolVar(&cmd.first, "first", false, "print only the first document")
}

func (cmd *findCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	e, status := openEntity(ctx, f)
	if e == nil {
		return status
	}
	s := lightblue.NewSelection(e, cmd.where...)
	if cmd.createdBy != "" {
		s.FilterCreatedBy(cmd.createdBy)
	}
	s.AddToProjection(cmd.fields...)
	s.AddToRecursiveProjection(cmd.recursive...)

	switch {
	case cmd.first:
		doc, err := s.First(ctx)
		if err != nil {
			log.Printf("Failed to find: %v", err)
			return subcommands.ExitFailure
		}
		return printJSON(cmd.out, doc)
	case cmd.pageSize > 0:
		var projection any
		if s.HasProjection() {
			projection = s.CompileProjection()
		}
		var (
			docs []any
			err  error
		)
		if s.HasQuery() {
			docs, err = e.FindItemPaginated(ctx, cmd.pageSize, s.CompileQuery(), projection)
		} else {
			docs, err = e.FindAllPaginated(ctx, cmd.pageSize, projection)
		}
		if err != nil {
			log.Printf("Failed to find: %v", err)
			return subcommands.ExitFailure
		}
		return printJSON(cmd.out, docs)
	default:
		r, err := s.Query.Find(ctx)
		if err != nil {
			log.Printf("Failed to find: %v", err)
			return subcommands.ExitFailure
		}
		if !e.CheckResponse(ctx, r) {
			return subcommands.ExitFailure
		}
		return printJSON(cmd.out, r.Processed)
	}
}

type insertCmd struct {
	out io.Writer
	in  io.Reader
}

func (*insertCmd) Name() string     { return "insert" }
func (*insertCmd) Synopsis() string { return "Insert documents read from stdin" }
func (*insertCmd) Usage() string {
	return `insert <entity URL>

  Read a JSON document, or an array of documents, from stdin and insert it.

  Example:
    echo '{"login":"bob"}' | lbcli insert lightblue://user?version=1.0.0` + helpSuffix
}

func (*insertCmd) SetFlags(_ *flag.FlagSet) {}

func (cmd *insertCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	e, status := openEntity(ctx, f)
	if e == nil {
		return status
	}
	in := cmd.in
	if in == nil {
		in = os.Stdin
	}
	var data any
	if err := json.NewDecoder(in).Decode(&data); err != nil {
		log.Printf("Failed to read documents: %v", err)
		return subcommands.ExitFailure
	}
	r, err := lightblue.Insert(ctx, e, data)
	if err != nil {
		log.Printf("Failed to insert: %v", err)
		return subcommands.ExitFailure
	}
	if !e.CheckResponse(ctx, r) {
		return subcommands.ExitFailure
	}
	return printJSON(cmd.out, r.Processed)
}

type updateCmd struct {
	out    io.Writer
	where  pairs
	set    pairs
	unset  fields
	append pairs
}

func (*updateCmd) Name() string     { return "update" }
func (*updateCmd) Synopsis() string { return "Update documents of an entity" }
func (*updateCmd) Usage() string {
	return `update -q field=value... [-set field=value]... [-unset field,...] [-append field=value]... <entity URL>

  Update the documents matching all the filters and print how many changed.

  Example:
    lbcli update -q login=bob -set age=30 lightblue://user` + helpSuffix
}

func (cmd *updateCmd) SetFlags(f *flag.FlagSet) {
	f.Var(&cmd.where, "q", "filter as field=value; repeatable")
	f.Var(&cmd.set, "set", "field=value to set; repeatable")
	f.Var(&cmd.unset, "unset", "fields to remove")
	f.Var(&cmd.append, "append", "field=value to append to an array field; repeatable")
}

func (cmd *updateCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	e, status := openEntity(ctx, f)
	if e == nil {
		return status
	}
	s := lightblue.NewSelection(e, cmd.where...)
	s.AddToUpdate(lightblue.Update{Set: cmd.set.values(), Unset: cmd.unset, Append: cmd.append.values()})
	n, err := s.Update(ctx, &lightblue.SelectOptions{Path: "/modifiedCount"})
	if err != nil {
		log.Printf("Failed to update: %v", err)
		return subcommands.ExitFailure
	}
	if n == nil {
		return subcommands.ExitFailure
	}
	fmt.Fprintf(cmd.out, "modified %v\n", n)
	return subcommands.ExitSuccess
}

type deleteCmd struct {
	out   io.Writer
	where pairs
	all   bool
}

func (*deleteCmd) Name() string     { return "delete" }
func (*deleteCmd) Synopsis() string { return "Delete documents of an entity" }
func (*deleteCmd) Usage() string {
	return `delete (-q field=value... | -all) <entity URL>

  Delete the documents matching all the filters, or every document with -all.

  Example:
    lbcli delete -q login=bob lightblue://user` + helpSuffix
}

func (cmd *deleteCmd) SetFlags(f *flag.FlagSet) {
	f.Var(&cmd.where, "q", "filter as field=value; repeatable")
	f.BoolVar(&cmd.all, "all", false, "delete every document of the entity")
}

func (cmd *deleteCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	e, status := openEntity(ctx, f)
	if e == nil {
		return status
	}
	if cmd.all && len(cmd.where) > 0 {
		log.Print("-all cannot be combined with -q")
		return subcommands.ExitUsageError
	}
	var n any
	if cmd.all {
		r, err := e.DeleteAll(ctx)
		if err != nil {
			log.Printf("Failed to delete: %v", err)
			return subcommands.ExitFailure
		}
		if e.CheckResponse(ctx, r) {
			n = r.ModifiedCount
		}
	} else {
		var err error
		n, err = lightblue.NewSelection(e, cmd.where...).Delete(ctx, &lightblue.SelectOptions{Path: "/modifiedCount"})
		if err != nil {
			log.Printf("Failed to delete: %v", err)
			return subcommands.ExitFailure
		}
	}
	if n == nil {
		return subcommands.ExitFailure
	}
	fmt.Fprintf(cmd.out, "deleted %v\n", n)
	return subcommands.ExitSuccess
}

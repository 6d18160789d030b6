// taskctl — консольный клиент task-manager.
//
//	taskctl [-api URL] [-session FILE] <command> [args]
//
// Сессия (пара токенов) хранится в файле и переживает перезапуски;
// истёкший access-токен обновляется автоматически.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/pribylovaa/go-task-manager/pkg/client"
)

const usage = `usage: taskctl [flags] <command> [args]

commands:
  register                     create an account and sign in
  login                        sign in
  logout                       revoke the session
  me                           show the current user
  projects                     list projects
  project-create <name>        create a project
  project-delete <id>          delete a project
  member-add <project> <user>  add a project member
  activity <project> [limit]   show project activity
  tasks [project] [label]      list tasks assigned to you
  task-create <project> <title> [priority]
  task-toggle <id>             flip completion
  task-delete <id>             delete a task
`

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "taskctl:", err)
		os.Exit(1)
	}
}

func defaultSessionPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "taskctl", "session.json")
}

func run(ctx context.Context, args []string, in io.Reader, out io.Writer) error {
	fs := flag.NewFlagSet("taskctl", flag.ContinueOnError)
	fs.SetOutput(out)
	fs.Usage = func() { fmt.Fprint(out, usage) }

	apiURL := fs.String("api", envOr("TASKCTL_API", "http://localhost:8080/api"), "API base URL")
	sessionPath := fs.String("session", envOr("TASKCTL_SESSION", defaultSessionPath()), "session file")

	if err := fs.Parse(args); err != nil {
		return err
	}

	rest := fs.Args()
	if len(rest) == 0 {
		fs.Usage()
		return errors.New("no command")
	}

	c := client.New(*apiURL, client.NewFileStore(*sessionPath))
	r := bufio.NewReader(in)

	cmd, params := rest[0], rest[1:]
	switch cmd {
	case "register":
		email, err := prompt(r, out, "Email")
		if err != nil {
			return err
		}
		name, err := prompt(r, out, "Name")
		if err != nil {
			return err
		}
		pw, err := promptPassword(out)
		if err != nil {
			return err
		}
		u, err := c.Register(ctx, email, name, pw)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "registered %s (%s)\n", u.Email, u.ID)

	case "login":
		email, err := prompt(r, out, "Email")
		if err != nil {
			return err
		}
		pw, err := promptPassword(out)
		if err != nil {
			return err
		}
		u, err := c.Login(ctx, email, pw)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "signed in as %s\n", u.Name)

	case "logout":
		if err := c.Logout(ctx); err != nil {
			return err
		}
		fmt.Fprintln(out, "signed out")

	case "me":
		u, err := c.Me(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s\t%s\t%s\n", u.ID, u.Email, u.Name)

	case "projects":
		ps, err := c.ListProjects(ctx)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tNAME\tMEMBERS")
		for _, p := range ps {
			fmt.Fprintf(tw, "%s\t%s\t%d\n", p.ID, p.Name, len(p.MemberIDs))
		}
		return tw.Flush()

	case "project-create":
		if err := need(params, 1); err != nil {
			return err
		}
		p, err := c.CreateProject(ctx, params[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(out, p.ID)

	case "project-delete":
		if err := need(params, 1); err != nil {
			return err
		}
		return c.DeleteProject(ctx, params[0])

	case "member-add":
		if err := need(params, 2); err != nil {
			return err
		}
		p, err := c.AddMember(ctx, params[0], params[1])
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s: %d members\n", p.Name, len(p.MemberIDs))

	case "activity":
		if err := need(params, 1); err != nil {
			return err
		}
		limit := 0
		if len(params) > 1 {
			n, err := strconv.Atoi(params[1])
			if err != nil {
				return fmt.Errorf("limit: %w", err)
			}
			limit = n
		}
		acts, err := c.Activity(ctx, params[0], limit)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "TIME\tACTION\tUSER\tTASK")
		for _, a := range acts {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", a.Timestamp.Format(time.RFC3339), a.Action, a.UserID, a.TaskID)
		}
		return tw.Flush()

	case "tasks":
		var projectID, label string
		if len(params) > 0 {
			projectID = params[0]
		}
		if len(params) > 1 {
			label = params[1]
		}
		ts, err := c.ListTasks(ctx, projectID, label)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tDONE\tPRIORITY\tTITLE")
		for _, t := range ts {
			done := " "
			if t.IsCompleted {
				done = "x"
			}
			fmt.Fprintf(tw, "%s\t[%s]\t%s\t%s\n", t.ID, done, t.Priority, t.Title)
		}
		return tw.Flush()

	case "task-create":
		if err := need(params, 2); err != nil {
			return err
		}
		in := client.NewTask{ProjectID: params[0], Title: params[1]}
		if len(params) > 2 {
			in.Priority = params[2]
		}
		t, err := c.CreateTask(ctx, in)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, t.ID)

	case "task-toggle":
		if err := need(params, 1); err != nil {
			return err
		}
		t, err := c.ToggleTask(ctx, params[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s completed=%t\n", t.ID, t.IsCompleted)

	case "task-delete":
		if err := need(params, 1); err != nil {
			return err
		}
		return c.DeleteTask(ctx, params[0])

	default:
		fs.Usage()
		return fmt.Errorf("unknown command %q", cmd)
	}

	return nil
}

func need(params []string, n int) error {
	if len(params) < n {
		return fmt.Errorf("expected %d argument(s), got %d", n, len(params))
	}
	return nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

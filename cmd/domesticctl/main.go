package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"text/tabwriter"
	"time"
)

type options struct {
	addr    string
	timeout time.Duration
	limit   int
}

type serviceStatus struct {
	Name     string `json:"name"`
	Kind     string `json:"kind"`
	State    string `json:"state"`
	Critical bool   `json:"critical"`
	Port     int    `json:"port"`
	URL      string `json:"url"`
	PID      int    `json:"pid"`
	Restarts int    `json:"restarts"`
	LastErr  string `json:"last_error"`
}

type journalEvent struct {
	ID        int64     `json:"id"`
	Kind      string    `json:"kind"`
	Unit      string    `json:"unit"`
	Detail    string    `json:"detail"`
	CreatedAt time.Time `json:"created_at"`
}

func main() {
	opts, args := parseFlags()
	if len(args) == 0 {
		fatalf("usage: domesticctl [flags] status [service] | start|stop|restart <service> | down | events [service]")
	}

	client := &client{base: strings.TrimRight(opts.addr, "/"), http: &http.Client{Timeout: opts.timeout}}

	var err error
	switch cmd := args[0]; cmd {
	case "status":
		if len(args) > 1 {
			err = client.serviceStatus(args[1])
		} else {
			err = client.fleetStatus()
		}
	case "start", "stop", "restart":
		if len(args) < 2 {
			fatalf("%s requires a service name", cmd)
		}
		err = client.action(args[1], cmd)
	case "down":
		err = client.down()
	case "events":
		if len(args) > 1 {
			err = client.events("/services/"+args[1]+"/history", opts.limit)
		} else {
			err = client.events("/events", opts.limit)
		}
	default:
		fatalf("unknown command %q (supported: status, start, stop, restart, down, events)", cmd)
	}
	if err != nil {
		fatalf("%v", err)
	}
}

func parseFlags() (options, []string) {
	var opts options
	flag.StringVar(&opts.addr, "addr", "http://localhost:9090", "admin API base URL")
	flag.DurationVar(&opts.timeout, "timeout", 2*time.Minute, "request timeout")
	flag.IntVar(&opts.limit, "limit", 20, "event count for the events command")
	flag.Parse()
	return opts, flag.Args()
}

type client struct {
	base string
	http *http.Client
}

func (c *client) get(path string, out any) error {
	resp, err := c.http.Get(c.base + path)
	if err != nil {
		return err
	}
	return decode(resp, out)
}

func (c *client) post(path string, out any) error {
	resp, err := c.http.Post(c.base+path, "application/json", nil)
	if err != nil {
		return err
	}
	return decode(resp, out)
}

func decode(resp *http.Response, out any) error {
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s: %s", resp.Status, apiErr.Error)
		}
		return fmt.Errorf("%s", resp.Status)
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(body, out)
}

func (c *client) fleetStatus() error {
	var body struct {
		Services []serviceStatus `json:"services"`
	}
	if err := c.get("/services", &body); err != nil {
		return err
	}
	printStatuses(body.Services)
	return nil
}

func (c *client) serviceStatus(name string) error {
	var status serviceStatus
	if err := c.get("/services/"+name, &status); err != nil {
		return err
	}
	printStatuses([]serviceStatus{status})
	return nil
}

func (c *client) action(name, verb string) error {
	var body struct {
		Service serviceStatus `json:"service"`
	}
	if err := c.post("/services/"+name+"/"+verb, &body); err != nil {
		return err
	}
	printStatuses([]serviceStatus{body.Service})
	return nil
}

func (c *client) down() error {
	if err := c.post("/down", nil); err != nil {
		return err
	}
	fmt.Println("fleet stopped")
	return nil
}

func (c *client) events(path string, limit int) error {
	var body struct {
		Events []journalEvent `json:"events"`
	}
	if err := c.get(fmt.Sprintf("%s?limit=%d", path, limit), &body); err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tKIND\tUNIT\tDETAIL")
	for _, e := range body.Events {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", e.CreatedAt.Format(time.RFC3339), e.Kind, e.Unit, e.Detail)
	}
	return w.Flush()
}

func printStatuses(statuses []serviceStatus) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SERVICE\tKIND\tSTATE\tPORT\tPID\tRESTARTS\tDETAIL")
	for _, s := range statuses {
		detail := s.URL
		if s.LastErr != "" {
			detail = s.LastErr
		}
		port := ""
		if s.Port > 0 {
			port = fmt.Sprintf("%d", s.Port)
		}
		pid := ""
		if s.PID > 0 {
			pid = fmt.Sprintf("%d", s.PID)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%s\n", s.Name, s.Kind, s.State, port, pid, s.Restarts, detail)
	}
	w.Flush()
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "domesticctl: "+format+"\n", args...)
	os.Exit(1)
}

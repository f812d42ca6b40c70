package main

import (
	"fmt"
	"strings"
)

// DefaultLogLines is how many lines the CLI shows when --lines is not given.
const DefaultLogLines = 30

// command binds client handlers to the global flags.
type command struct {
	g *GlobalFlags
}

func (c *command) client() (*APIClient, error) {
	api := NewAPIClient(c.g.APIUrl, c.g.APITimeout)
	if !api.IsReachable() {
		return nil, fmt.Errorf("daemon not reachable at %s - start it first with 'hostr serve'", api.baseURL)
	}
	return api, nil
}

func (c *command) Create(name string) error {
	api, err := c.client()
	if err != nil {
		return err
	}
	res, err := api.Create(name)
	if err != nil {
		return err
	}
	fmt.Println(res.Detail)
	return nil
}

func (c *command) List() error {
	api, err := c.client()
	if err != nil {
		return err
	}
	names, err := api.List()
	if err != nil {
		return err
	}
	if len(names) == 0 {
		fmt.Println("no projects")
		return nil
	}
	for _, n := range names {
		st, err := api.Status(n)
		if err != nil {
			fmt.Printf("%s\t(status unavailable: %v)\n", n, err)
			continue
		}
		fmt.Printf("%s\t%s\n", n, st.Text)
	}
	return nil
}

func (c *command) Start(name string) error {
	api, err := c.client()
	if err != nil {
		return err
	}
	res, err := api.Start(name)
	if err != nil {
		return err
	}
	fmt.Println(res.Detail)
	return nil
}

func (c *command) Stop(name string) error {
	api, err := c.client()
	if err != nil {
		return err
	}
	res, err := api.Stop(name)
	if err != nil {
		return err
	}
	fmt.Println(res.Detail)
	return nil
}

func (c *command) Restart(name string) error {
	api, err := c.client()
	if err != nil {
		return err
	}
	res, err := api.Restart(name)
	if err != nil {
		return err
	}
	fmt.Println(res.Detail)
	return nil
}

func (c *command) Status(name string) error {
	api, err := c.client()
	if err != nil {
		return err
	}
	st, err := api.Status(name)
	if err != nil {
		return err
	}
	fmt.Printf("%s: %s\n", name, st.Text)
	return nil
}

func (c *command) Logs(name string, f LogsFlags) error {
	api, err := c.client()
	if err != nil {
		return err
	}
	lines := f.Lines
	if lines <= 0 {
		lines = DefaultLogLines
	}
	res, err := api.Logs(name, lines)
	if err != nil {
		return err
	}
	if res.Empty {
		fmt.Println("logs are empty")
		return nil
	}
	fmt.Print(res.Text)
	if !strings.HasSuffix(res.Text, "\n") {
		fmt.Println()
	}
	return nil
}

func (c *command) Usage(name string) error {
	api, err := c.client()
	if err != nil {
		return err
	}
	res, err := api.Usage(name)
	if err != nil {
		return err
	}
	fmt.Println(res.Text)
	return nil
}

func (c *command) Install(name string) error {
	api, err := c.client()
	if err != nil {
		return err
	}
	res, err := api.Install(name)
	if err != nil {
		return err
	}
	fmt.Println(res.Detail)
	return nil
}

func (c *command) SetCommand(name string, f SetCommandFlags) error {
	api, err := c.client()
	if err != nil {
		return err
	}
	res, err := api.SetCommand(name, f.Command)
	if err != nil {
		return err
	}
	fmt.Println(res.Detail)
	return nil
}

func (c *command) Delete(name string) error {
	api, err := c.client()
	if err != nil {
		return err
	}
	res, err := api.Delete(name)
	if err != nil {
		return err
	}
	fmt.Println(res.Detail)
	return nil
}

package main

import "fmt"

// List implements `nutc list <type> [ups] [var]`, mirroring upsc's
// "list everything this UPS reports" mode plus the finer-grained LIST
// subcommands (cmd/enum/range/client) the wire protocol exposes.
type List struct {
	Type string `arg:"" enum:"ups,var,rw,cmd,client,enum,range" help:"ups|var|rw|cmd|client|enum|range"`
	UPS  string `arg:"" optional:"" help:"UPS name (omit for 'list ups')"`
	Var  string `arg:"" optional:"" help:"variable name (required for enum/range)"`
}

func (l *List) Run(ctx *cliContext) error {
	p := ctx.conn

	line := "LIST " + l.Type
	if l.Type != "ups" {
		if l.UPS == "" {
			return fmt.Errorf("ups name is required for LIST %s", l.Type)
		}
		line += " " + l.UPS
		if l.Type == "enum" || l.Type == "range" {
			if l.Var == "" {
				return fmt.Errorf("variable name is required for LIST %s", l.Type)
			}
			line += " " + l.Var
		}
	}

	if _, err := p.request(line); err != nil {
		return err
	}
	rows, err := p.readUntilEnd()
	if err != nil {
		return err
	}
	for _, row := range rows {
		fmt.Println(row)
	}
	return nil
}

// Get implements `nutc get <type> <ups> <var>`.
type Get struct {
	Type string `arg:"" enum:"var,type,desc,cmddesc" help:"var|type|desc|cmddesc"`
	UPS  string `arg:""`
	Var  string `arg:""`
}

func (g *Get) Run(ctx *cliContext) error {
	reply, err := ctx.conn.request(fmt.Sprintf("GET %s %s %s", g.Type, g.UPS, g.Var))
	if err != nil {
		return err
	}
	fmt.Println(reply)
	return nil
}

// Set implements `nutc set <ups> <var> <value>`.
type Set struct {
	UPS   string `arg:""`
	Var   string `arg:""`
	Value string `arg:""`
}

func (s *Set) Run(ctx *cliContext) error {
	if err := login(ctx.conn, s.UPS); err != nil {
		return err
	}
	reply, err := ctx.conn.request(fmt.Sprintf("SET VAR %s %s %s", s.UPS, s.Var, s.Value))
	if err != nil {
		return err
	}
	fmt.Println(reply)
	return nil
}

// Cmd implements `nutc cmd <ups> <cmdname> [arg]`.
type Cmd struct {
	UPS  string `arg:""`
	Name string `arg:""`
	Arg  string `arg:"" optional:""`
}

func (c *Cmd) Run(ctx *cliContext) error {
	if err := login(ctx.conn, c.UPS); err != nil {
		return err
	}
	line := fmt.Sprintf("INSTCMD %s %s", c.UPS, c.Name)
	if c.Arg != "" {
		line += " " + c.Arg
	}
	reply, err := ctx.conn.request(line)
	if err != nil {
		return err
	}
	fmt.Println(reply)
	return nil
}

package app

import (
	"go.trai.ch/anvil/internal/core/domain"
	"go.trai.ch/anvil/internal/engine/action"
	"go.trai.ch/zerr"
)

// programRef resolves a program produced by another planned command. The
// lookup is deferred to preparation so plan order does not matter.
type programRef struct {
	commands map[string]*action.Command
	name     string
}

func (r programRef) ProgramFile() string {
	if c, ok := r.commands[r.name]; ok {
		return c.ProgramFile()
	}
	return ""
}

// buildCommands creates one command per spec, in plan order.
func buildCommands(s *action.Session, specs []domain.ActionSpec) ([]*action.Command, error) {
	byName := make(map[string]*action.Command, len(specs))
	commands := make([]*action.Command, 0, len(specs))

	for _, spec := range specs {
		opts := action.CommandOptions{
			Name:           spec.Name,
			Program:        spec.Program,
			Produces:       spec.Produces,
			Args:           spec.Args,
			Inputs:         spec.Inputs,
			Outputs:        spec.Outputs,
			Intermediates:  spec.Intermediates,
			Dir:            spec.WorkingDir,
			Env:            spec.Environment,
			StdoutFile:     spec.Stdout,
			StderrFile:     spec.Stderr,
			Pool:           spec.Pool,
			Always:         spec.Always,
			Silent:         spec.Silent,
			RemoveOutputs:  spec.RemoveOutputs,
			NoResponseFile: spec.NoResponseFile,
		}
		if spec.ProgramFrom != "" {
			opts.Base = programRef{commands: byName, name: spec.ProgramFrom}
		}

		c, err := s.NewCommand(opts)
		if err != nil {
			return nil, zerr.Wrap(err, "failed to create action")
		}
		if spec.Name != "" {
			byName[spec.Name] = c
		}
		commands = append(commands, c)
	}
	return commands, nil
}

package skill

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/nexusswarm/nexus/internal/security"
)

// RegisterBuiltins registers the built-in skills.
func RegisterBuiltins(r *Registry) {
	r.Register(&CalculatorSkill{})
	r.Register(&DatetimeSkill{})
	r.Register(&FileReadSkill{})
}

// CalculatorSkill evaluates a binary arithmetic expression.
type CalculatorSkill struct{}

// Manifest implements Skill.
func (s *CalculatorSkill) Manifest() Manifest {
	return Manifest{
		Name:        "calculator",
		Version:     "1.0.0",
		Description: "Evaluates a binary arithmetic expression, e.g. \"3 * 14\".",
		Author:      "nexus-builtin",
		Parameters: map[string]ParameterDef{
			"expression": {Type: "string", Description: "expression of the form <number> <op> <number>", Required: true},
		},
		Returns: "string",
	}
}

// Execute implements Skill.
func (s *CalculatorSkill) Execute(_ context.Context, params map[string]string) (Result, error) {
	expr := params["expression"]
	fields := strings.Fields(expr)
	if len(fields) != 3 {
		return Result{Error: fmt.Sprintf("expression %q is not of the form <number> <op> <number>", expr)}, nil
	}

	left, errL := strconv.ParseFloat(fields[0], 64)
	right, errR := strconv.ParseFloat(fields[2], 64)
	if errL != nil || errR != nil {
		return Result{Error: fmt.Sprintf("expression %q has non-numeric operands", expr)}, nil
	}

	var value float64
	switch fields[1] {
	case "+":
		value = left + right
	case "-":
		value = left - right
	case "*":
		value = left * right
	case "/":
		if right == 0 {
			return Result{Error: "division by zero"}, nil
		}
		value = left / right
	default:
		return Result{Error: fmt.Sprintf("unknown operator %q", fields[1])}, nil
	}

	return Result{Success: true, Output: strconv.FormatFloat(value, 'f', -1, 64)}, nil
}

// DatetimeSkill reports the current time.
type DatetimeSkill struct{}

// Manifest implements Skill.
func (s *DatetimeSkill) Manifest() Manifest {
	return Manifest{
		Name:        "datetime",
		Version:     "1.0.0",
		Description: "Returns the current date and time.",
		Author:      "nexus-builtin",
		Capabilities: []security.Grant{
			{Capability: security.CapSystemInfo},
		},
		Parameters: map[string]ParameterDef{
			"format":   {Type: "string", Description: "Go layout string or \"unix\"; defaults to RFC 3339"},
			"timezone": {Type: "string", Description: "IANA timezone name; defaults to local"},
		},
		Returns: "string",
	}
}

// Execute implements Skill.
func (s *DatetimeSkill) Execute(_ context.Context, params map[string]string) (Result, error) {
	now := time.Now()
	if tz := params["timezone"]; tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			return Result{Error: fmt.Sprintf("unknown timezone %q", tz)}, nil
		}
		now = now.In(loc)
	}

	format := params["format"]
	switch format {
	case "":
		return Result{Success: true, Output: now.Format(time.RFC3339)}, nil
	case "unix":
		return Result{Success: true, Output: strconv.FormatInt(now.Unix(), 10)}, nil
	default:
		return Result{Success: true, Output: now.Format(format)}, nil
	}
}

// maxFileReadBytes caps what the file-read skill returns.
const maxFileReadBytes = 64 * 1024

// FileReadSkill reads a file from disk. It requires file:read, so manifest
// overrides can constrain it to specific path globs.
type FileReadSkill struct{}

// Manifest implements Skill.
func (s *FileReadSkill) Manifest() Manifest {
	return Manifest{
		Name:        "file-read",
		Version:     "1.0.0",
		Description: "Reads a file and returns its contents.",
		Author:      "nexus-builtin",
		Capabilities: []security.Grant{
			{Capability: security.CapFileRead},
		},
		Parameters: map[string]ParameterDef{
			"path": {Type: "string", Description: "path of the file to read", Required: true},
		},
		Returns: "string",
	}
}

// Execute implements Skill.
func (s *FileReadSkill) Execute(_ context.Context, params map[string]string) (Result, error) {
	path := params["path"]
	if path == "" {
		return Result{Error: "missing required parameter: path"}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Result{Error: fmt.Sprintf("read %s: %v", path, err)}, nil
	}
	if len(data) > maxFileReadBytes {
		data = data[:maxFileReadBytes]
	}
	return Result{Success: true, Output: string(data)}, nil
}

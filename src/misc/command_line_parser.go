package misc

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

type OptionKind int

const (
	INT OptionKind = iota
	STRING
)

type option struct {
	kind          OptionKind
	name          string
	default_value string
	value         string
	is_set        bool
	help_msg      string
}

// CommandLineParser collects typed options with defaults and parses the
// process arguments against them. Options are set as --name value or
// --name=value; bare flags (--help) register as set without a value.
type CommandLineParser struct {
	options map[string]*option
}

func (this *CommandLineParser) Init() {
	this.options = make(map[string]*option)
}

func (this *CommandLineParser) AddOption(kind OptionKind, name string, default_value string, help_msg string) {
	this.options[name] = &option{
		kind:          kind,
		name:          name,
		default_value: default_value,
		value:         default_value,
		help_msg:      help_msg,
	}
}

func (this *CommandLineParser) Parse(args []string) {
	i := 1
	for i < len(args) {
		arg := args[i]
		if !strings.HasPrefix(arg, "--") {
			panic(fmt.Errorf("unexpected argument: %s", arg))
		}

		name := strings.TrimPrefix(arg, "--")
		value := ""
		has_value := false
		if eq := strings.Index(name, "="); eq >= 0 {
			value = name[eq+1:]
			name = name[:eq]
			has_value = true
		}

		opt, ok := this.options[name]
		if !ok {
			if name == "help" {
				this.AddOption(STRING, "help", "", "print this help message")
				opt = this.options["help"]
			} else {
				panic(fmt.Errorf("unknown option: %s", name))
			}
		}

		if !has_value && i+1 < len(args) && !strings.HasPrefix(args[i+1], "--") {
			value = args[i+1]
			i++
		}

		opt.value = value
		opt.is_set = true
		i++
	}
}

func (this *CommandLineParser) IsArgSet(name string) bool {
	opt, ok := this.options[name]
	return ok && opt.is_set
}

func (this *CommandLineParser) IntParameter(name string) int64 {
	opt, ok := this.options[name]
	if !ok || opt.kind != INT {
		panic(fmt.Errorf("no int option named %s", name))
	}

	value, err := strconv.ParseInt(opt.value, 10, 64)
	if err != nil {
		panic(err)
	}
	return value
}

func (this *CommandLineParser) StringParameter(name string) string {
	opt, ok := this.options[name]
	if !ok || opt.kind != STRING {
		panic(fmt.Errorf("no string option named %s", name))
	}
	return opt.value
}

func (this *CommandLineParser) StringifyHelpMsgs() string {
	names := make([]string, 0, len(this.options))
	for name := range this.options {
		names = append(names, name)
	}
	sort.Strings(names)

	var builder strings.Builder
	for _, name := range names {
		opt := this.options[name]
		builder.WriteString(fmt.Sprintf("--%s (default: %s): %s\n", opt.name, opt.default_value, opt.help_msg))
	}
	return builder.String()
}

func (this *CommandLineParser) StringifyOptions() string {
	names := make([]string, 0, len(this.options))
	for name := range this.options {
		names = append(names, name)
	}
	sort.Strings(names)

	var builder strings.Builder
	for _, name := range names {
		opt := this.options[name]
		builder.WriteString(fmt.Sprintf("%s=%s\n", opt.name, opt.value))
	}
	return builder.String()
}

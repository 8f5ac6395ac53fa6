package misc

import (
	"errors"
	"fmt"
)

type CommandLineValidator struct {
	command_line_parser *CommandLineParser
}

func (this *CommandLineValidator) Init(command_line_parser *CommandLineParser) {
	this.command_line_parser = command_line_parser
}

func (this *CommandLineValidator) Validate() {
	num_slots := this.command_line_parser.IntParameter("num_slots")
	if num_slots <= 0 {
		err := errors.New("num_slots <= 0")
		panic(err)
	}
	if num_slots > 16 {
		err := errors.New("num_slots > 16")
		panic(err)
	}

	device_mode := this.command_line_parser.StringParameter("device_mode")
	if _, ok := DeviceModeFromString(device_mode); !ok {
		err := fmt.Errorf("device_mode %s is not supported", device_mode)
		panic(err)
	}

	demo_gsize := this.command_line_parser.IntParameter("demo_gsize")
	demo_lsize := this.command_line_parser.IntParameter("demo_lsize")
	if demo_lsize <= 0 {
		err := errors.New("demo_lsize <= 0")
		panic(err)
	}
	if demo_gsize%demo_lsize != 0 {
		err := errors.New("demo_gsize is not a multiple of demo_lsize")
		panic(err)
	}
}

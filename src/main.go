package main

import (
	"artico3/src/daemon"
	"artico3/src/hw"
	"artico3/src/misc"
	"artico3/src/rcfg"
	"artico3/src/runtime"
	"encoding/binary"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	command_line_parser := InitCommandLineParser()
	command_line_parser.Parse(os.Args)

	if command_line_parser.IsArgSet("help") {
		fmt.Printf("%s", command_line_parser.StringifyHelpMsgs())
		return
	}

	misc.ConfigureRuntime(command_line_parser)

	command_line_validator := new(misc.CommandLineValidator)
	command_line_validator.Init(command_line_parser)
	command_line_validator.Validate()

	device := hw.NewSimDevice(misc.NumSlots())

	var loader rcfg.Loader
	switch misc.RuntimeDeviceMode() {
	case misc.DeviceModeFpgaManager:
		link, firmware, flags, state := misc.FirmwarePaths()
		loader = &rcfg.FPGAManager{FirmwareLink: link, Firmware: firmware, Flags: flags, State: state}
	case misc.DeviceModeXdevcfg:
		node, partial := misc.XdevcfgPaths()
		loader = &rcfg.Xdevcfg{Device: node, PartialAttr: partial}
	default:
		loader = &rcfg.NullLoader{}
	}

	rt, err := runtime.Open(runtime.Config{
		Registers: device,
		Engine:    device,
		Loader:    loader,
		Waiter:    device,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "artico3: %v\n", err)
		os.Exit(1)
	}
	defer rt.Close()

	transport := daemon.NewPipeTransport()
	dispatcher := daemon.New(rt)

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-signals
		misc.Infof("signal [%v] received, start termination process", sig)
		transport.Close()
	}()

	if command_line_parser.IsArgSet("demo") {
		go func() {
			runDemo(dispatcher, transport, device)
			transport.Close()
		}()
	}

	dispatcher.Serve(transport)
}

// runDemo drives a vector addition kernel through the request interface:
// two streaming inputs, one streaming output, two simplex accelerator
// copies sharing the work.
func runDemo(dispatcher *daemon.Daemon, transport *daemon.PipeTransport, device *hw.SimDevice) {
	gsize, lsize := misc.DemoGeometry()
	membanks := 3
	membytes := membanks * lsize * 4

	// The accelerator model: c = a + b over one block of work items.
	device.SlotWords = membanks * lsize
	device.Process = func(slot int, mem []hw.Data) {
		if len(mem) < 3*lsize {
			return
		}
		for i := 0; i < lsize; i++ {
			mem[2*lsize+i] = mem[i] + mem[lsize+i]
		}
	}

	call := func(tag daemon.FuncTag, args *daemon.ArgWriter) daemon.Response {
		response := transport.Call(daemon.Request{
			UserID:    1,
			ChannelID: 0,
			Func:      tag,
			Args:      args.Bytes(),
		})
		if response.Code < 0 {
			fmt.Fprintf(os.Stderr, "artico3: demo request %d failed with code %d\n", tag, response.Code)
			os.Exit(1)
		}
		return response
	}

	added := call(daemon.FuncAddUser, new(daemon.ArgWriter).Str("demo"))
	uid := int32(binary.LittleEndian.Uint32(added.Payload))
	call(daemon.FuncKernelCreate, new(daemon.ArgWriter).Str("addvector").U64(uint64(membytes)).U64(uint64(membanks)).U64(1))
	call(daemon.FuncLoad, new(daemon.ArgWriter).Str("addvector").U8(0).U8(0).U8(0).U8(0))
	call(daemon.FuncLoad, new(daemon.ArgWriter).Str("addvector").U8(1).U8(0).U8(0).U8(0))

	call(daemon.FuncAlloc, new(daemon.ArgWriter).U64(uint64(gsize*4)).Str("addvector").Str("a").U32(uint32(runtime.PortIn)))
	call(daemon.FuncAlloc, new(daemon.ArgWriter).U64(uint64(gsize*4)).Str("addvector").Str("b").U32(uint32(runtime.PortIn)))
	call(daemon.FuncAlloc, new(daemon.ArgWriter).U64(uint64(gsize*4)).Str("addvector").Str("c").U32(uint32(runtime.PortOut)))

	a, _ := dispatcher.Buffer("addvector", "a")
	b, _ := dispatcher.Buffer("addvector", "b")
	c, _ := dispatcher.Buffer("addvector", "c")
	for i := range a {
		a[i] = hw.Data(i)
		b[i] = hw.Data(2 * i)
	}

	naccs := call(daemon.FuncGetNaccs, new(daemon.ArgWriter).Str("addvector"))
	call(daemon.FuncKernelExecute, new(daemon.ArgWriter).Str("addvector").U64(uint64(gsize)).U64(uint64(lsize)))
	call(daemon.FuncKernelWait, new(daemon.ArgWriter).Str("addvector"))

	errors := 0
	for i := range c {
		if c[i] != hw.Data(3*i) {
			errors++
		}
	}
	fmt.Printf("addvector: %d work items on %d accelerators, %d errors\n", gsize, naccs.Code, errors)

	call(daemon.FuncFree, new(daemon.ArgWriter).Str("addvector").Str("a"))
	call(daemon.FuncFree, new(daemon.ArgWriter).Str("addvector").Str("b"))
	call(daemon.FuncFree, new(daemon.ArgWriter).Str("addvector").Str("c"))
	call(daemon.FuncUnload, new(daemon.ArgWriter).U8(0))
	call(daemon.FuncUnload, new(daemon.ArgWriter).U8(1))
	call(daemon.FuncKernelRelease, new(daemon.ArgWriter).Str("addvector"))
	call(daemon.FuncRemoveUser, new(daemon.ArgWriter).I32(uid))
}

func InitCommandLineParser() *misc.CommandLineParser {
	command_line_parser := new(misc.CommandLineParser)
	command_line_parser.Init()

	command_line_parser.AddOption(misc.INT, "num_slots", "4",
		"number of reconfigurable slots of the simulated device")

	command_line_parser.AddOption(
		misc.STRING,
		"device_mode",
		string(misc.DefaultDeviceMode()),
		"reconfiguration backend (sim|fpga_manager|xdevcfg)",
	)

	command_line_parser.AddOption(misc.STRING, "repo_dirpath", "/opt/artico3",
		"path to the directory holding partial bitstream files")

	command_line_parser.AddOption(misc.STRING, "demo", "",
		"run the built-in vector addition workload and exit")

	command_line_parser.AddOption(misc.INT, "demo_gsize", "64",
		"demo workload global work size in items")
	command_line_parser.AddOption(misc.INT, "demo_lsize", "16",
		"demo workload items per accelerator per round")

	return command_line_parser
}

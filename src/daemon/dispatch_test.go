package daemon

import (
	"encoding/binary"
	"testing"

	"artico3/src/hw"
	"artico3/src/rcfg"
	"artico3/src/runtime"
)

func newTestDaemon(t *testing.T) (*Daemon, *hw.SimDevice) {
	t.Helper()

	device := hw.NewSimDevice(4)
	rt, err := runtime.Open(runtime.Config{
		Registers: device,
		Engine:    device,
		Loader:    &rcfg.NullLoader{},
		Waiter:    device,
	})
	if err != nil {
		t.Fatalf("unexpected error opening runtime: %v", err)
	}
	return New(rt), device
}

func handle(t *testing.T, dispatcher *Daemon, tag FuncTag, args *ArgWriter) Response {
	t.Helper()

	response := dispatcher.Handle(Request{UserID: 1, ChannelID: 0, Func: tag, Args: args.Bytes()})
	if response.Code < 0 {
		t.Fatalf("request %d failed with code %d", tag, response.Code)
	}
	return response
}

func TestDispatchVectorAddition(t *testing.T) {
	dispatcher, device := newTestDaemon(t)

	const lsize = 4
	device.SlotWords = 3 * lsize
	device.Process = func(slot int, mem []hw.Data) {
		if len(mem) < 3*lsize {
			return
		}
		for i := 0; i < lsize; i++ {
			mem[2*lsize+i] = mem[i] + mem[lsize+i]
		}
	}

	added := handle(t, dispatcher, FuncAddUser, new(ArgWriter).Str("client"))
	if added.Code != runtime.MaxKernels {
		t.Fatalf("expected kernel capacity %d in response, got %d", runtime.MaxKernels, added.Code)
	}
	uid := int32(binary.LittleEndian.Uint32(added.Payload))

	handle(t, dispatcher, FuncKernelCreate, new(ArgWriter).Str("addvector").U64(3*lsize*4).U64(3).U64(1))
	handle(t, dispatcher, FuncLoad, new(ArgWriter).Str("addvector").U8(0).U8(0).U8(0).U8(0))
	handle(t, dispatcher, FuncLoad, new(ArgWriter).Str("addvector").U8(1).U8(0).U8(0).U8(0))

	naccs := handle(t, dispatcher, FuncGetNaccs, new(ArgWriter).Str("addvector"))
	if naccs.Code != 2 {
		t.Fatalf("expected 2 equivalent accelerators, got %d", naccs.Code)
	}

	const gsize = 16
	handle(t, dispatcher, FuncAlloc, new(ArgWriter).U64(gsize*4).Str("addvector").Str("a").U32(uint32(runtime.PortIn)))
	handle(t, dispatcher, FuncAlloc, new(ArgWriter).U64(gsize*4).Str("addvector").Str("b").U32(uint32(runtime.PortIn)))
	handle(t, dispatcher, FuncAlloc, new(ArgWriter).U64(gsize*4).Str("addvector").Str("c").U32(uint32(runtime.PortOut)))

	a, ok := dispatcher.Buffer("addvector", "a")
	if !ok {
		t.Fatalf("expected a buffer for port a")
	}
	b, _ := dispatcher.Buffer("addvector", "b")
	c, _ := dispatcher.Buffer("addvector", "c")
	for i := 0; i < gsize; i++ {
		a[i] = hw.Data(i)
		b[i] = hw.Data(2 * i)
	}

	handle(t, dispatcher, FuncKernelExecute, new(ArgWriter).Str("addvector").U64(gsize).U64(lsize))
	handle(t, dispatcher, FuncKernelWait, new(ArgWriter).Str("addvector"))

	for i, v := range c {
		if v != hw.Data(3*i) {
			t.Fatalf("expected %d at item %d, got %d", 3*i, i, v)
		}
	}

	handle(t, dispatcher, FuncFree, new(ArgWriter).Str("addvector").Str("c"))
	if _, ok := dispatcher.Buffer("addvector", "c"); ok {
		t.Fatalf("expected buffer dropped after free")
	}

	handle(t, dispatcher, FuncKernelRelease, new(ArgWriter).Str("addvector"))
	handle(t, dispatcher, FuncRemoveUser, new(ArgWriter).I32(uid))
}

func TestDispatchConfigReadback(t *testing.T) {
	dispatcher, _ := newTestDaemon(t)

	handle(t, dispatcher, FuncAddUser, new(ArgWriter).Str("client"))
	handle(t, dispatcher, FuncKernelCreate, new(ArgWriter).Str("k").U64(48).U64(3).U64(1))
	handle(t, dispatcher, FuncLoad, new(ArgWriter).Str("k").U8(0).U8(0).U8(0).U8(0))
	handle(t, dispatcher, FuncLoad, new(ArgWriter).Str("k").U8(2).U8(0).U8(0).U8(0))

	wcfg := new(ArgWriter).Str("k").U16(0x20).U32(77).U32(88)
	handle(t, dispatcher, FuncKernelWCfg, wcfg)

	readback := handle(t, dispatcher, FuncKernelRCfg, new(ArgWriter).Str("k").U16(0x20))
	if len(readback.Payload) != 8 {
		t.Fatalf("expected 8 payload bytes, got %d", len(readback.Payload))
	}
	if got := binary.LittleEndian.Uint32(readback.Payload); got != 77 {
		t.Fatalf("expected 77 for first accelerator, got %d", got)
	}
	if got := binary.LittleEndian.Uint32(readback.Payload[4:]); got != 88 {
		t.Fatalf("expected 88 for second accelerator, got %d", got)
	}

	handle(t, dispatcher, FuncKernelReset, new(ArgWriter).Str("k"))
}

func TestDispatchErrorCodes(t *testing.T) {
	dispatcher, _ := newTestDaemon(t)

	if got := dispatcher.Handle(Request{Func: FuncKernelRelease, Args: new(ArgWriter).Str("nope").Bytes()}).Code; got != codeNoDevice {
		t.Fatalf("expected %d for unknown kernel, got %d", codeNoDevice, got)
	}

	handle(t, dispatcher, FuncKernelCreate, new(ArgWriter).Str("k").U64(48).U64(3).U64(1))
	if got := dispatcher.Handle(Request{Func: FuncKernelCreate, Args: new(ArgWriter).Str("k").U64(48).U64(3).U64(1).Bytes()}).Code; got != codeBusy {
		t.Fatalf("expected %d for duplicate kernel, got %d", codeBusy, got)
	}

	// A kernel with no slot assignment has zero equivalent accelerators.
	if got := dispatcher.Handle(Request{Func: FuncGetNaccs, Args: new(ArgWriter).Str("k").Bytes()}).Code; got != codeInvalidArg {
		t.Fatalf("expected %d for kernel without slots, got %d", codeInvalidArg, got)
	}

	// Truncated argument buffers and unknown tags report EINVAL.
	if got := dispatcher.Handle(Request{Func: FuncLoad, Args: new(ArgWriter).Str("k").Bytes()}).Code; got != codeInvalidArg {
		t.Fatalf("expected %d for truncated arguments, got %d", codeInvalidArg, got)
	}
	if got := dispatcher.Handle(Request{Func: FuncTag(99)}).Code; got != codeInvalidArg {
		t.Fatalf("expected %d for unknown tag, got %d", codeInvalidArg, got)
	}
}

func TestUserRegistry(t *testing.T) {
	dispatcher, _ := newTestDaemon(t)

	added := handle(t, dispatcher, FuncAddUser, new(ArgWriter).Str("client"))
	uid := int32(binary.LittleEndian.Uint32(added.Payload))

	if got := dispatcher.Handle(Request{Func: FuncAddUser, Args: new(ArgWriter).Str("client").Bytes()}).Code; got != codeBusy {
		t.Fatalf("expected %d for duplicate user name, got %d", codeBusy, got)
	}

	handle(t, dispatcher, FuncRemoveUser, new(ArgWriter).I32(uid))
	if got := dispatcher.Handle(Request{Func: FuncRemoveUser, Args: new(ArgWriter).I32(uid).Bytes()}).Code; got != codeNoDevice {
		t.Fatalf("expected %d for unknown user, got %d", codeNoDevice, got)
	}

	// The registry holds at most MaxUsers clients.
	for i := 0; i < MaxUsers; i++ {
		handle(t, dispatcher, FuncAddUser, new(ArgWriter).Str("client"+string(rune('a'+i))))
	}
	if got := dispatcher.Handle(Request{Func: FuncAddUser, Args: new(ArgWriter).Str("overflow").Bytes()}).Code; got != codeBusy {
		t.Fatalf("expected %d with full registry, got %d", codeBusy, got)
	}
}

func TestPipeTransportRoundTrip(t *testing.T) {
	dispatcher, _ := newTestDaemon(t)
	transport := NewPipeTransport()

	done := make(chan struct{})
	go func() {
		dispatcher.Serve(transport)
		close(done)
	}()

	response := transport.Call(Request{
		UserID:    3,
		ChannelID: 1,
		Func:      FuncAddUser,
		Args:      new(ArgWriter).Str("remote").Bytes(),
	})
	if response.Code != runtime.MaxKernels {
		t.Fatalf("expected kernel capacity %d, got %d", runtime.MaxKernels, response.Code)
	}

	response = transport.Call(Request{
		UserID:    3,
		ChannelID: 1,
		Func:      FuncKernelCreate,
		Args:      new(ArgWriter).Str("k").U64(48).U64(3).U64(1).Bytes(),
	})
	if response.Code != codeOK {
		t.Fatalf("expected success, got code %d", response.Code)
	}

	transport.Close()
	<-done
}

package daemon

import (
	"encoding/binary"
	"errors"
	"sync"

	"artico3/src/hw"
	"artico3/src/misc"
	"artico3/src/runtime"
)

// MaxUsers bounds the client registry.
const MaxUsers = 10

// Errno-style result codes sent back to clients.
const (
	codeOK         = 0
	codeNoDevice   = -19 // ENODEV: kernel, port, user or slot not found
	codeBusy       = -16 // EBUSY: resource already in use
	codeNoMemory   = -12 // ENOMEM: allocation failure
	codeInvalidArg = -22 // EINVAL: malformed arguments
	codeIO         = -5  // EIO: hardware or reconfiguration failure
)

// user is one registered client.
type user struct {
	id   int32
	name string
}

// Daemon dispatches client requests onto a runtime instance. Every request
// runs in its own task so blocking operations (kernel wait) do not stall
// the request loop; the transport arbitrates request submission.
type Daemon struct {
	rt *runtime.Runtime

	mu      sync.Mutex
	users   [MaxUsers]*user
	nextID  int32
	buffers map[string][]hw.Data
}

// New wraps a runtime instance for request dispatch.
func New(rt *runtime.Runtime) *Daemon {
	return &Daemon{
		rt:      rt,
		buffers: make(map[string][]hw.Data),
	}
}

// Serve pulls requests from the transport until it is closed, handling each
// in a dedicated task and delivering the response on the originating
// (client, channel) pair.
func (this *Daemon) Serve(transport Transport) {
	for {
		request, ok := transport.Recv()
		if !ok {
			misc.Infof("request transport closed, stopping dispatch")
			return
		}
		go func(request Request) {
			response := this.Handle(request)
			transport.Send(request.UserID, request.ChannelID, response)
		}(request)
	}
}

// Handle executes one request and builds its response. Unknown tags and
// malformed argument buffers report EINVAL.
func (this *Daemon) Handle(request Request) Response {
	reader := &argReader{buf: request.Args}

	var response Response
	switch request.Func {
	case FuncAddUser:
		name := reader.str()
		if reader.err != nil {
			break
		}
		id, err := this.addUser(name)
		if err != nil {
			return Response{Code: errCode(err)}
		}
		// New clients learn their ID and the kernel list capacity.
		response.Code = runtime.MaxKernels
		response.Payload = binary.LittleEndian.AppendUint32(nil, uint32(id))
		return response

	case FuncRemoveUser:
		id := reader.i32()
		if reader.err != nil {
			break
		}
		return Response{Code: errCode(this.removeUser(id))}

	case FuncLoad:
		name := reader.str()
		slot := reader.u8()
		tmr := reader.u8()
		dmr := reader.u8()
		force := reader.u8()
		if reader.err != nil {
			break
		}
		return Response{Code: errCode(this.rt.Load(name, int(slot), tmr, dmr, force != 0))}

	case FuncUnload:
		slot := reader.u8()
		if reader.err != nil {
			break
		}
		return Response{Code: errCode(this.rt.Unload(int(slot)))}

	case FuncKernelCreate:
		name := reader.str()
		membytes := reader.u64()
		membanks := reader.u64()
		regs := reader.u64()
		if reader.err != nil {
			break
		}
		return Response{Code: errCode(this.rt.KernelCreate(name, int(membytes), int(membanks), int(regs)))}

	case FuncKernelRelease:
		name := reader.str()
		if reader.err != nil {
			break
		}
		return Response{Code: errCode(this.rt.KernelRelease(name))}

	case FuncKernelExecute:
		name := reader.str()
		gsize := reader.u64()
		lsize := reader.u64()
		if reader.err != nil {
			break
		}
		return Response{Code: errCode(this.rt.Execute(name, int(gsize), int(lsize)))}

	case FuncKernelWait:
		name := reader.str()
		if reader.err != nil {
			break
		}
		return Response{Code: errCode(this.rt.Wait(name))}

	case FuncKernelReset:
		name := reader.str()
		if reader.err != nil {
			break
		}
		return Response{Code: errCode(this.rt.KernelReset(name))}

	case FuncKernelWCfg:
		name := reader.str()
		reg := reader.u16()
		raw := reader.rest()
		if reader.err != nil || len(raw)%hw.WordBytes != 0 {
			break
		}
		cfg := make([]hw.Data, len(raw)/hw.WordBytes)
		for i := range cfg {
			cfg[i] = binary.LittleEndian.Uint32(raw[i*hw.WordBytes:])
		}
		return Response{Code: errCode(this.rt.KernelWCfg(name, reg, cfg))}

	case FuncKernelRCfg:
		name := reader.str()
		reg := reader.u16()
		if reader.err != nil {
			break
		}
		// Clients size the readback with a prior get-naccs request; the
		// dispatch resolves the count again so a stale size is rejected by
		// the runtime instead of smearing values across groups.
		naccs, err := this.rt.GetNaccs(name)
		if err != nil {
			return Response{Code: errCode(err)}
		}
		cfg := make([]hw.Data, naccs)
		if err := this.rt.KernelRCfg(name, reg, cfg); err != nil {
			return Response{Code: errCode(err)}
		}
		payload := make([]byte, 0, len(cfg)*hw.WordBytes)
		for _, v := range cfg {
			payload = binary.LittleEndian.AppendUint32(payload, v)
		}
		return Response{Code: codeOK, Payload: payload}

	case FuncAlloc:
		size := reader.u64()
		kname := reader.str()
		pname := reader.str()
		dir := reader.u32()
		if reader.err != nil {
			break
		}
		data, err := this.rt.Alloc(int(size), kname, pname, runtime.PortDir(dir))
		if err != nil {
			return Response{Code: errCode(err)}
		}
		this.mu.Lock()
		this.buffers[kname+"/"+pname] = data
		this.mu.Unlock()
		return Response{Code: codeOK}

	case FuncFree:
		kname := reader.str()
		pname := reader.str()
		if reader.err != nil {
			break
		}
		if err := this.rt.Free(kname, pname); err != nil {
			return Response{Code: errCode(err)}
		}
		this.mu.Lock()
		delete(this.buffers, kname+"/"+pname)
		this.mu.Unlock()
		return Response{Code: codeOK}

	case FuncGetNaccs:
		name := reader.str()
		if reader.err != nil {
			break
		}
		naccs, err := this.rt.GetNaccs(name)
		if err != nil {
			return Response{Code: errCode(err)}
		}
		return Response{Code: int32(naccs)}
	}

	return Response{Code: codeInvalidArg}
}

// Buffer exposes the backing region of an allocated port to in-process
// clients, standing in for the shared memory mapping of an out-of-process
// deployment.
func (this *Daemon) Buffer(kname string, pname string) ([]hw.Data, bool) {
	this.mu.Lock()
	defer this.mu.Unlock()

	data, ok := this.buffers[kname+"/"+pname]
	return data, ok
}

// addUser registers a client. Names double as shared channel identifiers,
// so duplicates are rejected.
func (this *Daemon) addUser(name string) (int32, error) {
	this.mu.Lock()
	defer this.mu.Unlock()

	index := -1
	for i := 0; i < MaxUsers; i++ {
		if this.users[i] == nil {
			if index < 0 {
				index = i
			}
			continue
		}
		if this.users[i].name == name {
			return 0, runtime.ErrBusy
		}
	}
	if index < 0 {
		return 0, runtime.ErrBusy
	}

	this.nextID++
	this.users[index] = &user{id: this.nextID, name: name}
	misc.Debugf("registered user (name=%s,id=%d)", name, this.nextID)

	return this.nextID, nil
}

// removeUser drops a client from the registry.
func (this *Daemon) removeUser(id int32) error {
	this.mu.Lock()
	defer this.mu.Unlock()

	for i := 0; i < MaxUsers; i++ {
		if this.users[i] != nil && this.users[i].id == id {
			misc.Debugf("released user (name=%s,id=%d)", this.users[i].name, id)
			this.users[i] = nil
			return nil
		}
	}

	return runtime.ErrNotFound
}

// errCode maps runtime errors onto the errno-style codes of the client
// contract.
func errCode(err error) int32 {
	switch {
	case err == nil:
		return codeOK
	case errors.Is(err, runtime.ErrNotFound):
		return codeNoDevice
	case errors.Is(err, runtime.ErrBusy):
		return codeBusy
	case errors.Is(err, runtime.ErrNoMemory):
		return codeNoMemory
	case errors.Is(err, runtime.ErrInvalidArgument):
		return codeInvalidArg
	default:
		return codeIO
	}
}

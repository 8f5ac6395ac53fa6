package runtime

import (
	"fmt"
	goruntime "runtime"

	"artico3/src/hw"
	"artico3/src/misc"
)

// Execute starts the named kernel over a global work size, split into
// rounds of one local work size each. The call returns once the dedicated
// scheduling task is running; Wait collects its outcome. A kernel admits at
// most one outstanding execution; a second call while one is in flight
// fails instead of queueing.
func (this *Runtime) Execute(name string, gsize int, lsize int) error {
	this.guard.lock()
	defer this.guard.unlock()

	index, kernel, err := this.kernelByName(name)
	if err != nil {
		return err
	}
	if this.execs[index] != nil {
		return fmt.Errorf("%w: kernel %q is already executing", ErrBusy, name)
	}
	if lsize <= 0 || gsize%lsize != 0 {
		return fmt.Errorf("%w: gsize (%d) not an integer multiple of lsize (%d)", ErrInvalidArgument, gsize, lsize)
	}
	nrounds := gsize / lsize

	run := &exec{done: make(chan struct{})}
	this.execs[index] = run
	go this.roundLoop(kernel.ID, nrounds, run)
	misc.Debugf("started scheduling task for kernel %q (gsize=%d,lsize=%d,rounds=%d)", name, gsize, lsize, nrounds)

	return nil
}

// Wait blocks until the kernel's scheduling task finished and returns its
// outcome. Waiting on a kernel with no execution in flight is a no-op.
func (this *Runtime) Wait(name string) error {
	this.guard.lock()
	index, _, err := this.kernelByName(name)
	if err != nil {
		this.guard.unlock()
		return err
	}
	run := this.execs[index]
	this.guard.unlock()

	if run == nil {
		return nil
	}
	<-run.done

	this.guard.lock()
	this.execs[index] = nil
	this.guard.unlock()

	return run.err
}

// roundLoop is the per-kernel scheduling task. Every iteration resolves the
// current equivalent-accelerator count under the lock, stages and submits
// one round of inputs, waits for hardware completion outside the lock, then
// drains the outputs and advances by as many rounds as accelerators
// participated. Rounds never overlap; parallelism comes from the naccs
// accelerators computing simultaneously within a round.
func (this *Runtime) roundLoop(id uint8, nrounds int, run *exec) {
	defer close(run.done)

	round := 0
	for round < nrounds {
		this.guard.lock()
		this.guard.running++

		naccs, err := this.shuffler.EquivalentAccelerators(id)
		if err != nil {
			run.err = fmt.Errorf("%w: %v", ErrInvalidArgument, err)
			this.guard.running--
			this.guard.unlock()
			return
		}
		readymask := this.shuffler.ReadyMask(id)

		if err := this.send(id, naccs, round, nrounds); err != nil {
			run.err = err
			this.guard.running--
			this.guard.unlock()
			return
		}
		this.guard.unlock()

		// The completion wait happens outside the lock so other kernels'
		// tasks and reconfiguration callers are not serialized behind
		// hardware latency.
		if this.waiter != nil {
			this.waiter.WaitReady(readymask)
		} else {
			for !hw.TransferDone(this.rf, readymask) {
				goruntime.Gosched()
			}
		}

		this.guard.lock()
		if err := this.recv(id, naccs, round, nrounds); err != nil {
			run.err = err
			this.guard.running--
			this.guard.unlock()
			return
		}
		round += naccs
		this.guard.running--
		this.guard.unlock()
	}
}

// send stages one round of input data and submits it to the accelerators.
// Constant ports are skipped once they reached the hardware; if that leaves
// nothing to move, the accelerators are started with a direct command
// instead of a data transfer. Called with the runtime lock held.
func (this *Runtime) send(id uint8, naccs int, round int, nrounds int) error {
	kernel := this.kernels[id-1]
	loaded := kernel.CLoaded

	consts := occupied(kernel.Consts)
	inputs := occupied(kernel.Inputs)
	inouts := occupied(kernel.InOuts)
	if len(consts)+len(inputs)+len(inouts) == 0 {
		return fmt.Errorf("%w: no input ports in kernel %x", ErrNotFound, id)
	}

	var ports []*Port
	nconsts := 0
	if !loaded {
		ports = append(ports, consts...)
		nconsts = len(consts)
	}
	ports = append(ports, inputs...)
	ports = append(ports, inouts...)

	// All inputs are constants and they already reached the hardware:
	// prime the data path with an empty transfer and start the kernel by
	// command.
	if len(ports) == 0 {
		this.shuffler.SetupTransfer(this.rf, 0)
		if err := this.engine.MemToHW(nil, uint32(id)<<16); err != nil {
			return fmt.Errorf("prime transfer: %w", err)
		}
		this.start(id)
		return nil
	}

	blksize := len(ports) * kernel.WordsPerBank()
	mem, err := this.engine.Alloc(naccs * blksize)
	if err != nil {
		return fmt.Errorf("%w: scratch region (%d words): %v", ErrNoMemory, naccs*blksize, err)
	}
	defer this.engine.Release(mem)

	for acc := 0; acc < naccs; acc++ {
		// Near the end there can be more accelerators than rounds left;
		// their blocks stay untouched and the loop never consumes them.
		if round+acc >= nrounds {
			continue
		}
		for p, port := range ports {
			var size, idxDat int
			if p < nconsts {
				size = port.Words()
				idxDat = 0
			} else {
				size = port.Words() / nrounds
				idxDat = acc*size + round*size
			}
			idxMem := p*(blksize/len(ports)) + acc*blksize
			copy(mem[idxMem:idxMem+size], port.Data[idxDat:idxDat+size])
			misc.Debugf("send id %x | round %d | acc %d | port %d | mem %d | dat %d | words %d", id, round+acc, acc, p, idxMem, idxDat, size)
		}
	}

	this.shuffler.SetupTransfer(this.rf, uint32(blksize))
	offset := uint32(id) << 16
	if loaded {
		// Constants were skipped; the transfer lands after their banks.
		offset += uint32(len(consts) * (kernel.MemBytes / kernel.MemBanks))
	}
	if err := this.engine.MemToHW(mem, offset); err != nil {
		return fmt.Errorf("input transfer: %w", err)
	}

	kernel.CLoaded = true

	return nil
}

// recv drains one round of output data from the accelerators into the
// bidirectional and output ports. A kernel with no output ports succeeds
// without touching hardware. Called with the runtime lock held.
func (this *Runtime) recv(id uint8, naccs int, round int, nrounds int) error {
	kernel := this.kernels[id-1]

	var ports []*Port
	ports = append(ports, occupied(kernel.InOuts)...)
	ports = append(ports, occupied(kernel.Outputs)...)
	if len(ports) == 0 {
		misc.Debugf("recv id %x | no output ports", id)
		return nil
	}

	blksize := len(ports) * kernel.WordsPerBank()
	mem, err := this.engine.Alloc(naccs * blksize)
	if err != nil {
		return fmt.Errorf("%w: scratch region (%d words): %v", ErrNoMemory, naccs*blksize, err)
	}
	defer this.engine.Release(mem)

	this.shuffler.SetupTransfer(this.rf, uint32(blksize))
	offset := uint32(id)<<16 + uint32(kernel.MemBytes-blksize*hw.WordBytes)
	if err := this.engine.HWToMem(mem, offset); err != nil {
		return fmt.Errorf("output transfer: %w", err)
	}

	for acc := 0; acc < naccs; acc++ {
		if round+acc >= nrounds {
			continue
		}
		for p, port := range ports {
			size := port.Words() / nrounds
			idxMem := p*(blksize/len(ports)) + acc*blksize
			idxDat := acc*size + round*size
			copy(port.Data[idxDat:idxDat+size], mem[idxMem:idxMem+size])
			misc.Debugf("recv id %x | round %d | acc %d | port %d | mem %d | dat %d | words %d", id, round+acc, acc, p, idxMem, idxDat, size)
		}
	}

	return nil
}

// start issues the selective start command to every accelerator of a
// kernel. Register transactions run with a zero block size. Called with the
// runtime lock held.
func (this *Runtime) start(id uint8) {
	this.shuffler.SetupTransfer(this.rf, 0)
	hw.RegWrite(this.rf, id, hw.OpStart, 0, 0)
}

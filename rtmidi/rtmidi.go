package rtmidi

/*
#cgo pkg-config: rtmidi
#include <rtmidi_c.h>
#include <stdlib.h>

// Forward declaration for Go callback
extern void goRtMidiCallback(double timestamp, unsigned char* message, size_t messageSize, void* userData);
*/
import "C"
import (
	"fmt"
	"sync"
	"unsafe"
)

// Callbacks are looked up by id so no Go pointer crosses into C.
var (
	callbackRegistry   = make(map[uintptr]func([]byte, float64))
	callbackRegistryMu sync.RWMutex
	nextCallbackID     uintptr = 1
)

type midiIn struct {
	ptr C.RtMidiInPtr
	id  uintptr
}

type midiOut struct {
	ptr C.RtMidiOutPtr
}

func newMidiIn() (*midiIn, error) {
	ptr := C.rtmidi_in_create_default()
	if ptr == nil {
		return nil, fmt.Errorf("failed to create MIDI input")
	}
	if !ptr.ok {
		msg := C.GoString(ptr.msg)
		C.rtmidi_in_free(ptr)
		return nil, fmt.Errorf("failed to create MIDI input: %s", msg)
	}

	callbackRegistryMu.Lock()
	id := nextCallbackID
	nextCallbackID++
	callbackRegistryMu.Unlock()

	return &midiIn{ptr: ptr, id: id}, nil
}

func newMidiOut() (*midiOut, error) {
	ptr := C.rtmidi_out_create_default()
	if ptr == nil {
		return nil, fmt.Errorf("failed to create MIDI output")
	}
	if !ptr.ok {
		msg := C.GoString(ptr.msg)
		C.rtmidi_out_free(ptr)
		return nil, fmt.Errorf("failed to create MIDI output: %s", msg)
	}
	return &midiOut{ptr: ptr}, nil
}

func (in *midiIn) openPort(number uint, name string) error {
	cname := C.CString(name)
	defer C.free(unsafe.Pointer(cname))

	C.rtmidi_open_port(C.RtMidiPtr(in.ptr), C.uint(number), cname)
	if !in.ptr.ok {
		return fmt.Errorf("failed to open input port %d: %s", number, C.GoString(in.ptr.msg))
	}
	return nil
}

func (out *midiOut) openPort(number uint, name string) error {
	cname := C.CString(name)
	defer C.free(unsafe.Pointer(cname))

	C.rtmidi_open_port(C.RtMidiPtr(out.ptr), C.uint(number), cname)
	if !out.ptr.ok {
		return fmt.Errorf("failed to open output port %d: %s", number, C.GoString(out.ptr.msg))
	}
	return nil
}

// setCallback routes incoming messages to fn. fn runs on RtMidi's thread.
func (in *midiIn) setCallback(fn func(msg []byte, delta float64)) {
	callbackRegistryMu.Lock()
	callbackRegistry[in.id] = fn
	callbackRegistryMu.Unlock()

	C.rtmidi_in_set_callback(in.ptr, (*[0]byte)(C.goRtMidiCallback), unsafe.Pointer(in.id))
}

func (in *midiIn) cancelCallback() {
	C.rtmidi_in_cancel_callback(in.ptr)

	callbackRegistryMu.Lock()
	delete(callbackRegistry, in.id)
	callbackRegistryMu.Unlock()
}

// ignoreTypes configures which message classes RtMidi drops before delivery.
// midiTime covers timing clock as well as time code.
func (in *midiIn) ignoreTypes(midiSysex, midiTime, midiSense bool) {
	C.rtmidi_in_ignore_types(in.ptr, C.bool(midiSysex), C.bool(midiTime), C.bool(midiSense))
}

func (in *midiIn) portCount() int {
	return int(C.rtmidi_get_port_count(C.RtMidiPtr(in.ptr)))
}

func (out *midiOut) portCount() int {
	return int(C.rtmidi_get_port_count(C.RtMidiPtr(out.ptr)))
}

func (in *midiIn) portName(number int) string {
	return portName(C.RtMidiPtr(in.ptr), number)
}

func (out *midiOut) portName(number int) string {
	return portName(C.RtMidiPtr(out.ptr), number)
}

func portName(ptr C.RtMidiPtr, number int) string {
	// First call to get required buffer length
	var bufLen C.int
	result := C.rtmidi_get_port_name(ptr, C.uint(number), nil, &bufLen)
	if result != 0 || bufLen <= 0 {
		return fmt.Sprintf("Port %d", number)
	}

	buf := (*C.char)(C.calloc(C.size_t(bufLen+1), 1))
	defer C.free(unsafe.Pointer(buf))

	if C.rtmidi_get_port_name(ptr, C.uint(number), buf, &bufLen) == 0 {
		if name := C.GoString(buf); name != "" {
			return name
		}
	}
	return fmt.Sprintf("Port %d", number)
}

func (out *midiOut) sendMessage(data []byte) error {
	if len(data) == 0 {
		return nil
	}

	if C.rtmidi_out_send_message(out.ptr, (*C.uchar)(unsafe.Pointer(&data[0])), C.int(len(data))) < 0 {
		return fmt.Errorf("failed to send MIDI message: %s", C.GoString(out.ptr.msg))
	}
	return nil
}

func (in *midiIn) close() {
	if in.ptr == nil {
		return
	}
	callbackRegistryMu.Lock()
	delete(callbackRegistry, in.id)
	callbackRegistryMu.Unlock()

	C.rtmidi_in_free(in.ptr)
	in.ptr = nil
}

func (out *midiOut) close() {
	if out.ptr == nil {
		return
	}
	C.rtmidi_out_free(out.ptr)
	out.ptr = nil
}

//export goRtMidiCallback
func goRtMidiCallback(timestamp C.double, message *C.uchar, messageSize C.size_t, userData unsafe.Pointer) {
	id := uintptr(userData)
	callbackRegistryMu.RLock()
	callback, exists := callbackRegistry[id]
	callbackRegistryMu.RUnlock()

	if exists {
		data := C.GoBytes(unsafe.Pointer(message), C.int(messageSize))
		callback(data, float64(timestamp))
	}
}

//go:build darwin

package devicecapture

import (
	"fmt"
	"runtime"
	"sync"
	"unsafe"

	"github.com/e7canasta/device-camera-monitor/modules/devicecapture/internal/avf"
	"github.com/ebitengine/purego"
	"github.com/ebitengine/purego/objc"
)

// CoreMediaIO constants (four-char codes)
const (
	cmioObjectSystemObject                        = 1
	cmioHardwarePropertyAllowScreenCaptureDevices = 0x79657320 // 'yes '
	cmioObjectPropertyScopeGlobal                 = 0x676c6f62 // 'glob'
	cmioObjectPropertyElementMain                 = 0
)

// AVFoundation string constants
const (
	avMediaTypeVideo            = "vide"
	avMediaTypeMuxed            = "muxx"
	avDeviceTypeExternalUnknown = "AVCaptureDeviceTypeExternalUnknown"
	avDeviceTypeExternal        = "AVCaptureDeviceTypeExternal"
)

// Exported AVFoundation symbols holding the device notification names
var avDeviceNotifications = []string{
	"AVCaptureDeviceWasConnectedNotification",
	"AVCaptureDeviceWasDisconnectedNotification",
}

type cmioPropertyAddress struct {
	Selector uint32
	Scope    uint32
	Element  uint32
}

var (
	frameworksOnce sync.Once
	frameworksErr  error
	avfoundation   uintptr

	cmioObjectSetPropertyData func(objectID uint32, address *cmioPropertyAddress, qualifierDataSize uint32, qualifierData unsafe.Pointer, dataSize uint32, data unsafe.Pointer) int32
)

func loadFrameworks() error {
	frameworksOnce.Do(func() {
		cmio, err := purego.Dlopen("/System/Library/Frameworks/CoreMediaIO.framework/CoreMediaIO", purego.RTLD_LAZY|purego.RTLD_GLOBAL)
		if err != nil {
			frameworksErr = fmt.Errorf("failed to load CoreMediaIO: %w", err)
			return
		}
		purego.RegisterLibFunc(&cmioObjectSetPropertyData, cmio, "CMIOObjectSetPropertyData")

		handle, err := purego.Dlopen("/System/Library/Frameworks/AVFoundation.framework/AVFoundation", purego.RTLD_LAZY|purego.RTLD_GLOBAL)
		if err != nil {
			frameworksErr = fmt.Errorf("failed to load AVFoundation: %w", err)
			return
		}
		avfoundation = handle
	})
	return frameworksErr
}

func enableScreenCaptureDevices() error {
	if err := loadFrameworks(); err != nil {
		return err
	}

	addr := cmioPropertyAddress{
		Selector: cmioHardwarePropertyAllowScreenCaptureDevices,
		Scope:    cmioObjectPropertyScopeGlobal,
		Element:  cmioObjectPropertyElementMain,
	}
	allow := uint32(1)

	status := cmioObjectSetPropertyData(cmioObjectSystemObject, &addr, 0, nil,
		uint32(unsafe.Sizeof(allow)), unsafe.Pointer(&allow))
	if status != 0 {
		return fmt.Errorf("CMIOObjectSetPropertyData failed: OSStatus %d", status)
	}
	return nil
}

// listExternalDevices enumerates AVCaptureDevice.devices in the order
// avfvideosrc uses for device-index: video and muxed devices only.
func listExternalDevices() ([]Device, error) {
	if err := loadFrameworks(); err != nil {
		return nil, err
	}

	pool := objc.ID(objc.GetClass("NSAutoreleasePool")).Send(objc.RegisterName("new"))
	defer pool.Send(objc.RegisterName("drain"))

	cls := objc.GetClass("AVCaptureDevice")
	if cls == 0 {
		return nil, fmt.Errorf("AVCaptureDevice class not found")
	}

	all := objc.ID(cls).Send(objc.RegisterName("devices"))
	if all == 0 {
		return nil, nil
	}

	mediaVideo := nsString(avMediaTypeVideo)
	mediaMuxed := nsString(avMediaTypeMuxed)
	selHasMediaType := objc.RegisterName("hasMediaType:")

	count := objc.Send[uint](all, objc.RegisterName("count"))

	var devices []Device
	index := 0
	for i := uint(0); i < count; i++ {
		dev := all.Send(objc.RegisterName("objectAtIndex:"), i)

		hasVideo := objc.Send[bool](dev, selHasMediaType, mediaVideo)
		hasMuxed := objc.Send[bool](dev, selHasMediaType, mediaMuxed)
		if !hasVideo && !hasMuxed {
			continue
		}

		deviceType := goString(dev.Send(objc.RegisterName("deviceType")))
		if deviceType == avDeviceTypeExternalUnknown || deviceType == avDeviceTypeExternal {
			devices = append(devices, Device{
				UniqueID:      goString(dev.Send(objc.RegisterName("uniqueID"))),
				Name:          goString(dev.Send(objc.RegisterName("localizedName"))),
				Manufacturer:  goString(dev.Send(objc.RegisterName("manufacturer"))),
				ModelID:       goString(dev.Send(objc.RegisterName("modelID"))),
				Index:         index,
				SourceElement: avf.SourceAVFoundation,
			})
		}
		index++
	}

	return devices, nil
}

// observeDeviceNotifications registers a block with the default
// notification center for device connects and disconnects. The block runs
// on the posting thread and must not block.
func observeDeviceNotifications(notify func()) (func(), error) {
	if err := loadFrameworks(); err != nil {
		return nil, err
	}

	pool := objc.ID(objc.GetClass("NSAutoreleasePool")).Send(objc.RegisterName("new"))
	defer pool.Send(objc.RegisterName("drain"))

	center := objc.ID(objc.GetClass("NSNotificationCenter")).Send(objc.RegisterName("defaultCenter"))
	if center == 0 {
		return nil, fmt.Errorf("NSNotificationCenter defaultCenter unavailable")
	}

	block := objc.NewBlock(func(_ objc.Block, notification objc.ID) {
		notify()
	})

	selAdd := objc.RegisterName("addObserverForName:object:queue:usingBlock:")
	selRemove := objc.RegisterName("removeObserver:")
	selRelease := objc.RegisterName("release")

	var observers []objc.ID
	remove := func() {
		for _, obs := range observers {
			center.Send(selRemove, obs)
			obs.Send(selRelease)
		}
		block.Release()
	}

	for _, symbol := range avDeviceNotifications {
		name, err := notificationName(symbol)
		if err != nil {
			remove()
			return nil, err
		}
		obs := center.Send(selAdd, name, objc.ID(0), objc.ID(0), block)
		if obs == 0 {
			remove()
			return nil, fmt.Errorf("failed to observe %s", symbol)
		}
		// The returned token is autoreleased; keep it until remove
		observers = append(observers, obs.Send(objc.RegisterName("retain")))
	}

	var once sync.Once
	return func() { once.Do(remove) }, nil
}

// notificationName reads an NSString constant exported by AVFoundation
func notificationName(symbol string) (objc.ID, error) {
	ptr, err := purego.Dlsym(avfoundation, symbol)
	if err != nil {
		return 0, fmt.Errorf("symbol %s: %w", symbol, err)
	}
	name := *(*objc.ID)(unsafe.Pointer(ptr))
	if name == 0 {
		return 0, fmt.Errorf("symbol %s is nil", symbol)
	}
	return name, nil
}

func nsString(s string) objc.ID {
	cstr := append([]byte(s), 0)
	str := objc.ID(objc.GetClass("NSString")).Send(objc.RegisterName("stringWithUTF8String:"), uintptr(unsafe.Pointer(&cstr[0])))
	runtime.KeepAlive(cstr)
	return str
}

func goString(id objc.ID) string {
	if id == 0 {
		return ""
	}
	p := objc.Send[uintptr](id, objc.RegisterName("UTF8String"))
	if p == 0 {
		return ""
	}
	ptr := (*byte)(unsafe.Pointer(p))
	n := 0
	for *(*byte)(unsafe.Add(unsafe.Pointer(ptr), n)) != 0 {
		n++
	}
	return string(unsafe.Slice(ptr, n))
}

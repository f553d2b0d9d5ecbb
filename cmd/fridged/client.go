package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/muka/go-bluetooth/api"
	"github.com/muka/go-bluetooth/bluez/profile/adapter"
	"github.com/muka/go-bluetooth/bluez/profile/agent"
	"github.com/muka/go-bluetooth/bluez/profile/device"
	"github.com/muka/go-bluetooth/bluez/profile/gatt"
	log "github.com/sirupsen/logrus"

	"github.com/Gruni22/alpicool-ha-ble/pkg/fridge"
)

var (
	// Pi stuff
	zeroAdapter = "hci0"

	// Characteristics
	serviceUUID       = "00001234-0000-1000-8000-00805f9b34fb"
	writableUUID      = "00001235-0000-1000-8000-00805f9b34fb" // Write
	notificationUUID  = "00001236-0000-1000-8000-00805f9b34fb" // Read Notify
	gattCharInterface = "org.bluez.GattCharacteristic1"
)

// charTransport adapts the writable GATT characteristic to the protocol
// session's transport contract.
type charTransport struct {
	char *gatt.GattCharacteristic1
}

func (t *charTransport) Write(ctx context.Context, p []byte) error {
	return t.char.WriteValue(p, nil)
}

// Client is the main bluetooth client that looks at the fridge
func Client(ctx context.Context, wg *sync.WaitGroup, fr *Fridge, adapterID, hwaddr string, pollrate time.Duration) error {
	wg.Add(1)
	defer func() {
		log.Trace("Calling done on main wait group")
		wg.Done()
	}()

	// clean up connection on exit
	defer api.Exit()

	log.Infof("Discovering %s on %s", hwaddr, adapterID)

	a, err := adapter.NewAdapter1FromAdapterID(adapterID)
	if err != nil {
		return err
	}

	//Connect DBus System bus
	conn, err := dbus.SystemBus()
	if err != nil {
		return err
	}

	// do not reuse agent0 from service
	agent.NextAgentPath()

	ag := agent.NewSimpleAgent()
	err = agent.ExposeAgent(conn, ag, agent.CapNoInputNoOutput, true)
	if err != nil {
		return fmt.Errorf("SimpleAgent: %s", err)
	}

	findContext, cancelFindDevice := context.WithCancel(ctx)
	defer cancelFindDevice()
	dev, err := findDevice(findContext, a, hwaddr)
	if err != context.Canceled && err != nil {
		return fmt.Errorf("findDevice: %s", err)
	}

	connectContext, cancelConnectDevice := context.WithCancel(ctx)
	defer cancelConnectDevice()
	err = connect(connectContext, dev)
	if err != nil {
		return err
	}

	watchCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	err = watchFridge(watchCtx, fr, dev, pollrate)
	if err != nil {
		return err
	}

	log.Trace("Client blocking and waiting")
	// Wait for quit signal
	select {
	case <-ctx.Done():
		log.Tracef("Cancel: bluetooth client: %v", ctx.Err())
		log.Trace("Disconnecting from bluetooth...")
		err := dev.Disconnect()
		if err != nil {
			log.Error(err)
			return err
		}
		log.Trace("Disconnected from bluetooth")

		return nil
	}
}

func findDevice(ctx context.Context, a *adapter.Adapter1, hwaddr string) (*device.Device1, error) {
	devices, err := a.GetDevices()
	if err != nil {
		return nil, err
	}

	for _, dev := range devices {
		devProps, err := dev.GetProperties()
		if err != nil {
			log.Errorf("Failed to load dev props: %s", err)
			continue
		}

		if devProps.Address != hwaddr {
			continue
		}

		log.Infof("Found cached device Connected=%t Trusted=%t Paired=%t", devProps.Connected, devProps.Trusted, devProps.Paired)
		return dev, nil
	}

	// Start discovery if we don't see ours
	discoverCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	dev, err := discover(discoverCtx, a, hwaddr)
	if err != nil {
		return nil, err
	}
	if dev == nil {
		return nil, errors.New("Device not found, is it advertising?")
	}
	log.Debug("Found device")

	return dev, nil
}

func discover(ctx context.Context, a *adapter.Adapter1, hwaddr string) (*device.Device1, error) {

	err := a.FlushDevices()
	if err != nil {
		return nil, err
	}

	dFilter := adapter.NewDiscoveryFilter()
	dFilter.AddUUIDs(serviceUUID)
	dFilter.Transport = "le"
	a.SetDiscoveryFilter(dFilter.ToMap())

	discovery, cancelDiscovery, err := api.Discover(a, nil)
	defer cancelDiscovery()
	if err != nil {
		return nil, err
	}

	for {
		select {
		case ev := <-discovery:
			dev, err := device.NewDevice1(ev.Path)
			if err != nil {
				return nil, err
			}

			if dev == nil || dev.Properties == nil {
				continue
			}

			if dev.Properties.Address != hwaddr {
				continue
			}

			return dev, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func connect(ctx context.Context, dev *device.Device1) error {

	props, err := dev.GetProperties()
	if err != nil {
		return fmt.Errorf("Failed to load props: %s", err)
	}

	log.Debugf("Found device name=%s addr=%s rssi=%d", props.Name, props.Address, props.RSSI)

	if props.Connected {
		log.Info("Device is connected")
		return nil
	}

	// The fridge doesn't need to pair or trust because it's a stupid device
	log.Trace("Connecting device")
	err = dev.Connect()
	if err != nil {
		if !strings.Contains(err.Error(), "Connection refused") {
			return fmt.Errorf("Connect failed: %s", err)
		}
	}
	log.Trace("Connected to device")

	return nil
}

// watchFridge builds the protocol session on the connection's
// characteristics, starts the notification pump and the query poll loop.
func watchFridge(ctx context.Context, fr *Fridge, dev *device.Device1, pollrate time.Duration) error {
	log.Trace("watchFridge running")

	list, err := dev.GetCharacteristics()
	if err != nil {
		return err
	}

	// Retry until service discovery has run
	if len(list) == 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(2 * time.Second):
		}
		return watchFridge(ctx, fr, dev, pollrate)
	}
	log.Debugf("Found %d characteristics", len(list))

	char, err := dev.GetCharByUUID(writableUUID)
	if err != nil {
		return err
	}
	log.Debugf("Found writable UUID: %v", char.Properties.UUID)

	session := fridge.NewSession(&charTransport{char: char}, 0)
	fr.Attach(session)

	notifChar, err := dev.GetCharByUUID(notificationUUID)
	if err != nil {
		return err
	}

	propsC, err := notifChar.WatchProperties()
	if err != nil {
		return err
	}
	pumpCtx, cancelPump := context.WithCancel(ctx)
	go func(ctx context.Context) {
		defer cancelPump()
		log.Trace("notification pump starting")
		for {
			select {
			case <-ctx.Done():
				log.Trace("Cancel: notification pump", ctx.Err())
				return
			case update := <-propsC:
				if update == nil {
					continue
				}
				if update.Interface == gattCharInterface && update.Name == "Value" {
					value, ok := update.Value.([]byte)
					if !ok {
						log.Errorf("Notification value has type %T", update.Value)
						continue
					}
					session.HandleNotification(value)
				}
			}
		}
	}(pumpCtx)

	err = notifChar.StartNotify()
	if err != nil {
		return err
	}

	pollCtx, cancelPoll := context.WithCancel(ctx)
	go func(ctx context.Context) {
		defer cancelPoll()
		log.Trace("query poll loop starting")

		// The fridge accepts writes only from a bound host.
		if res, err := session.Send(ctx, fridge.NewBindCommand()); err != nil {
			log.Errorf("Bind failed: %s", err)
		} else {
			log.Debugf("Bind result: %s", res)
		}

		ticker := time.NewTicker(pollrate)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				log.Trace("Cancel: query poll loop", ctx.Err())
				return
			case <-ticker.C:
				res, err := session.Send(ctx, fridge.NewQueryCommand())
				switch {
				case errors.Is(err, fridge.ErrSessionBusy):
					// A user command is in flight; its status refresh
					// covers this tick.
					log.Trace("Skipping poll, session busy")
				case err != nil:
					log.Errorf("Query failed: %s", err)
				case res != fridge.Acknowledged:
					log.Debugf("Query result: %s", res)
				}
			}
		}
	}(pollCtx)

	log.Trace("watchFridge returning now")
	return nil
}

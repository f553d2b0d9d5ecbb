package main

import (
	"context"
	"sync"
	"time"

	"github.com/brutella/hc"
	"github.com/brutella/hc/accessory"
	hclog "github.com/brutella/hc/log"
	log "github.com/sirupsen/logrus"

	"github.com/Gruni22/alpicool-ha-ble/pkg/fridge"
)

// HKClient bridges the fridge into HomeKit: a thermostat per zone plus
// switches for power, eco mode and the keypad lock.
func HKClient(ctx context.Context, wg *sync.WaitGroup, storagePath, pin string, fr *Fridge) {
	wg.Add(1)
	defer func() {
		log.Trace("HK client calling done on main wait group")
		wg.Done()
	}()
	log.Trace("HKClient start")

	hclog.Debug.SetOutput(log.StandardLogger().WriterLevel(log.TraceLevel))
	hclog.Info.SetOutput(log.StandardLogger().WriterLevel(log.DebugLevel))

	newInfo := func(name string) accessory.Info {
		return accessory.Info{
			Name:         name,
			Manufacturer: "Alpicool",
			Model:        "BLE Bridge",
		}
	}

	lockButton := accessory.NewSwitch(newInfo("Fridge Lock"))
	lockButton.Switch.On.OnValueRemoteUpdate(fr.SetLocked)

	onButton := accessory.NewSwitch(newInfo("Fridge On"))
	onButton.Switch.On.OnValueRemoteUpdate(fr.SetOn)

	ecoButton := accessory.NewSwitch(newInfo("Fridge Eco"))
	ecoButton.Switch.On.OnValueRemoteUpdate(fr.SetEcoMode)

	// Bounds match the coldest/warmest settings the firmware accepts.
	leftThermo := accessory.NewThermostat(newInfo("Fridge Left"), 5, -20, 20, 1)
	leftThermo.Thermostat.TargetTemperature.OnValueRemoteUpdate(func(newTemp float64) {
		log.Tracef("New left TargetTemperature: %v", newTemp)
		fr.SetLeftTarget(int(newTemp))
	})

	rightThermo := accessory.NewThermostat(newInfo("Fridge Right"), 5, -20, 20, 1)
	rightThermo.Thermostat.TargetTemperature.OnValueRemoteUpdate(func(newTemp float64) {
		log.Tracef("New right TargetTemperature: %v", newTemp)
		fr.SetRightTarget(int(newTemp))
	})

	// Start the hk bridge ip transport
	config := hc.Config{Pin: pin, StoragePath: storagePath}
	t, err := hc.NewIPTransport(config,
		leftThermo.Accessory,
		rightThermo.Accessory,
		lockButton.Accessory,
		ecoButton.Accessory,
		onButton.Accessory,
	)
	if err != nil {
		log.Error(err)
		return
	}

	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()

		log.Trace("HK client looping now")
		for {
			select {
			case <-ctx.Done():
				log.Trace("HKClient ctx canceled")
				<-t.Stop()
				log.Trace("HKClient stopped")
				return
			case <-ticker.C:
				if !fr.Ready() {
					continue
				}
				s := fr.Snapshot()

				onButton.Switch.On.SetValue(s.PoweredOn)
				ecoButton.Switch.On.SetValue(s.Mode == fridge.ModeEco)
				lockButton.Switch.On.SetValue(s.Locked)

				cooling := 0
				if s.PoweredOn {
					cooling = 2
				}
				leftThermo.Thermostat.CurrentHeatingCoolingState.SetValue(cooling)
				leftThermo.Thermostat.TargetHeatingCoolingState.SetValue(cooling)
				leftThermo.Thermostat.CurrentTemperature.SetValue(float64(s.Left.Current))
				leftThermo.Thermostat.TargetTemperature.SetValue(float64(s.Left.Target))

				// Single-zone hardware never reports the right zone;
				// leave that accessory frozen rather than lying.
				if s.Right.Available {
					rightThermo.Thermostat.CurrentHeatingCoolingState.SetValue(cooling)
					rightThermo.Thermostat.TargetHeatingCoolingState.SetValue(cooling)
					rightThermo.Thermostat.CurrentTemperature.SetValue(float64(s.Right.Current))
					rightThermo.Thermostat.TargetTemperature.SetValue(float64(s.Right.Target))
				}
			}
		}
	}()

	// Start homekit transport
	t.Start()
}

package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joelkehle/agrichain-advisor/internal/agri"
	"github.com/joelkehle/agrichain-advisor/internal/simulator"
)

func main() {
	crop := flag.String("crop", "vegetable", "crop type (vegetable, fruit, grain, pulses)")
	quantity := flag.Float64("quantity", 100, "quantity in quintals")
	quality := flag.Float64("quality", 1.0, "initial quality in [0,1]")
	temp := flag.Float64("temp", 20, "storage temperature in °C")
	humidity := flag.Float64("humidity", 60, "storage humidity in %")
	transit := flag.Float64("transit", 0, "transit hours")
	weatherPath := flag.String("weather", "", "optional JSON file with a forecast array [{temperature, humidity, rainfall}]")
	flag.Parse()

	p := simulator.Params{
		CropType:        *crop,
		Quantity:        agri.Float(*quantity),
		InitialQuality:  agri.Float(*quality),
		StorageTemp:     agri.Float(*temp),
		StorageHumidity: agri.Float(*humidity),
		TransitHours:    agri.Float(*transit),
	}
	if *weatherPath != "" {
		blob, err := os.ReadFile(*weatherPath)
		if err != nil {
			log.Fatalf("read weather: %v", err)
		}
		if err := json.Unmarshal(blob, &p.Weather); err != nil {
			log.Fatalf("decode weather JSON: %v", err)
		}
	}

	traj, err := simulator.Simulate(p)
	if err != nil {
		log.Fatalf("simulate: %v", err)
	}
	traj.Timestamp = time.Now()

	out, err := json.MarshalIndent(traj, "", "  ")
	if err != nil {
		log.Fatalf("encode result: %v", err)
	}
	fmt.Println(string(out))
}

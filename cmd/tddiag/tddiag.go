package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/akamensky/argparse"
	"github.com/cyclopcam/logs"
	"github.com/cyclopcam/thermview/pkg/config"
	"github.com/cyclopcam/thermview/pkg/tdengine"
	"github.com/cyclopcam/thermview/pkg/thermal"
)

func check(err error) {
	if err != nil {
		panic(err)
	}
}

type diagnostic struct {
	name string
	run  func(ctx context.Context) (string, error)
}

func main() {
	parser := argparse.NewParser("tddiag", "Check the connection to TDengine, and that a sensor's frames can be read and decoded")
	configFile := parser.String("c", "config", &argparse.Options{Help: "Config file (default thermview.json, if it exists)", Required: false, Default: ""})
	mac := parser.String("m", "mac", &argparse.Options{Help: "Sensor MAC address", Required: false, Default: ""})
	sql := parser.String("", "sql", &argparse.Options{Help: "Run this statement and print the response", Required: false, Default: ""})
	err := parser.Parse(os.Args)
	if err != nil {
		fmt.Print(parser.Usage(err))
		os.Exit(1)
	}

	logger, _ := logs.NewLog()

	cfg, err := config.LoadConfigOrDefault(*configFile)
	check(err)
	if *mac != "" {
		cfg.Sensor.MAC = *mac
	}
	client := tdengine.NewClient(logger, cfg.TDengine)
	ctx := context.Background()

	if *sql != "" {
		resp, err := client.Exec(ctx, *sql)
		check(err)
		for _, row := range resp.Data {
			fmt.Println(row...)
		}
		fmt.Printf("%v rows\n", resp.Rows)
		return
	}

	diagnostics := []diagnostic{
		{"Server reachable", func(ctx context.Context) (string, error) {
			resp, err := client.Exec(ctx, "SHOW DATABASES")
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("%v databases", len(resp.Data)), nil
		}},
		{"Database access", func(ctx context.Context) (string, error) {
			_, err := client.Exec(ctx, "SELECT SERVER_VERSION()")
			return cfg.TDengine.Database, err
		}},
	}
	if cfg.Sensor.MAC != "" {
		shape := cfg.Shape()
		diagnostics = append(diagnostics,
			diagnostic{"Sensor table", func(ctx context.Context) (string, error) {
				table, err := tdengine.TableName(cfg.Sensor.MAC)
				if err != nil {
					return "", err
				}
				resp, err := client.Exec(ctx, "SELECT COUNT(*) FROM "+table)
				if err != nil {
					return "", err
				}
				if len(resp.Data) == 0 || len(resp.Data[0]) == 0 {
					return table + " is empty", nil
				}
				return fmt.Sprintf("%v has %v frames", table, resp.Data[0][0]), nil
			}},
			diagnostic{"Latest frame decodes", func(ctx context.Context) (string, error) {
				p, err := client.QueryLatest(ctx, cfg.Sensor.MAC)
				if err != nil {
					return "", err
				}
				f, err := p.Decode()
				if err != nil {
					return "", err
				}
				if err := f.CheckShape(shape); err != nil {
					return "", err
				}
				st := f.In(thermal.UnitCelsius).Stats()
				age := time.Since(time.UnixMilli(p.TimeMS)).Round(time.Second)
				return fmt.Sprintf("%v (%v ago), %v, %.1fC to %.1fC", tdengine.FormatTime(p.TimeMS), age, f.Shape(), st.Min, st.Max), nil
			}},
		)
	}

	failed := 0
	for i, d := range diagnostics {
		msg, err := d.run(ctx)
		if err != nil {
			failed++
			fmt.Printf("%v. %-22v FAIL  %v\n", i+1, d.name, err)
		} else {
			fmt.Printf("%v. %-22v OK    %v\n", i+1, d.name, msg)
		}
	}
	if failed != 0 {
		fmt.Printf("\n%v of %v checks failed. Check the host, port and credentials in the config, and the sensor MAC address\n", failed, len(diagnostics))
		os.Exit(1)
	}
}

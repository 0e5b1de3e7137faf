package main

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/synodriver/rqgo/pkg/device"
	"github.com/synodriver/rqgo/pkg/engine"
	"github.com/synodriver/rqgo/pkg/protocol"
)

func (a *app) listDevices() error {
	records, err := a.store.ListDevices()
	if err != nil {
		return err
	}

	tw := tablewriter.NewWriter(os.Stdout)
	tw.SetHeader([]string{"Name", "Model", "IMEI", "Android ID", "Ksid", "Updated"})
	tw.SetBorder(true)
	tw.SetAutoWrapText(false)
	for _, r := range records {
		tw.Append([]string{
			r.Name,
			r.Profile.Model,
			r.Profile.IMEI,
			r.Profile.AndroidID,
			hex.EncodeToString(r.Profile.Ksid()),
			time.Unix(r.UpdatedAt, 0).Format(time.DateTime),
		})
	}
	tw.Render()
	return nil
}

func (a *app) listSessions() error {
	records, err := a.store.ListSessions()
	if err != nil {
		return err
	}

	tw := tablewriter.NewWriter(os.Stdout)
	tw.SetHeader([]string{"Uin", "Protocol", "Device", "Updated"})
	tw.SetBorder(true)
	for _, r := range records {
		tw.Append([]string{
			strconv.FormatInt(r.Uin, 10),
			r.Protocol.String(),
			r.DeviceName,
			time.Unix(r.UpdatedAt, 0).Format(time.DateTime),
		})
	}
	tw.Render()
	return nil
}

func (a *app) newDevice(name string) error {
	p := device.Random()
	if err := a.store.SaveDevice(name, p); err != nil {
		return err
	}
	printDevice(name, p)
	return nil
}

func printDevice(name string, p device.Profile) {
	tw := tablewriter.NewWriter(os.Stdout)
	tw.SetHeader([]string{"Field", "Value"})
	tw.SetAutoWrapText(false)
	tw.AppendBulk([][]string{
		{"name", name},
		{"model", p.Model},
		{"brand", p.Brand},
		{"imei", p.IMEI},
		{"android id", p.AndroidID},
		{"os", fmt.Sprintf("Android %s (sdk %d)", p.Version.Release, p.Version.SDK)},
		{"ksid", hex.EncodeToString(p.Ksid())},
		{"guid", hex.EncodeToString(p.GUID())},
	})
	tw.Render()
}

func printAccount(uin int64, proto protocol.Protocol, info engine.AccountInfo) {
	tw := tablewriter.NewWriter(os.Stdout)
	tw.SetHeader([]string{"Uin", "Nick", "Age", "Gender", "Protocol"})
	tw.Append([]string{
		strconv.FormatInt(uin, 10),
		info.Nick,
		strconv.Itoa(int(info.Age)),
		strconv.Itoa(int(info.Gender)),
		proto.String(),
	})
	tw.Render()
}

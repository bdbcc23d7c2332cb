package view

import (
	"strconv"
	"time"
)

const AppName = "Nimbus"

type Footer struct {
	AppName   string `json:"appName"`
	Copyright string `json:"copyright"`
	PoweredBy string `json:"poweredBy"`
}

func NewFooter(now time.Time) Footer {
	return Footer{
		AppName:   AppName,
		Copyright: "© " + strconv.Itoa(now.Year()) + " Nimbus Weather. All rights reserved.",
		PoweredBy: "Powered by WeatherAPI.com",
	}
}

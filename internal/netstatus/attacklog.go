// Package netstatus reads the site-level status a backend publishes next to
// per-device telemetry: the intrusion log that flags each cluster area, and
// the CSV data tables for SOS contacts, firewalls and routers.
package netstatus

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
)

// AttackLogFile is the intrusion log's file name inside a data directory.
const AttackLogFile = "attack_log.txt"

// Level is an area's health.
type Level string

const (
	LevelNormal Level = "normal"
	LevelDanger Level = "danger"
)

// Cluster is one monitored area. The log refers to it as CC<ID>.
type Cluster struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Clusters lists the monitored areas in display order.
var Clusters = []Cluster{
	{ID: 1, Name: "Academic Area"},
	{ID: 2, Name: "Hostel Area"},
	{ID: 3, Name: "Housing Area"},
}

// ClusterName returns the area name for id, or "Unknown Area".
func ClusterName(id int) string {
	for _, c := range Clusters {
		if c.ID == id {
			return c.Name
		}
	}
	return "Unknown Area"
}

// Area is the status of one cluster area.
type Area struct {
	Cluster int    `json:"cluster"`
	Name    string `json:"name"`
	Status  Level  `json:"status"`
	Message string `json:"message,omitempty"`
}

var (
	detectionRe  = regexp.MustCompile(`(?i)\b(NO\s+)?ATTACK\s+DETECTED\s+AT\s+CC(\d+)`)
	attackTypeRe = regexp.MustCompile(`(?i)CC(\d+)\.\s+POSSIBLY\s+([A-Z][A-Z\s]*?)\s*ATTACK`)
)

// ParseAttackLog derives each area's status from the intrusion log.
//
// The log is read in order and the last detection line for an area decides
// it: "ATTACK DETECTED AT CCn" marks the area as danger, "NO ATTACK DETECTED
// AT CCn" clears it. A "CCn. POSSIBLY <TYPE> ATTACK" note names the attack.
// Areas the log never mentions are normal. Unknown clusters are ignored.
func ParseAttackLog(content string) []Area {
	type verdict struct {
		seen   bool
		attack bool
	}
	verdicts := make(map[int]verdict)
	for _, m := range detectionRe.FindAllStringSubmatch(content, -1) {
		id, err := strconv.Atoi(m[2])
		if err != nil {
			continue
		}
		verdicts[id] = verdict{seen: true, attack: m[1] == ""}
	}

	types := make(map[int]string)
	for _, m := range attackTypeRe.FindAllStringSubmatch(content, -1) {
		id, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		types[id] = strings.Join(strings.Fields(m[2]), " ")
	}

	areas := make([]Area, len(Clusters))
	for i, c := range Clusters {
		area := Area{Cluster: c.ID, Name: c.Name, Status: LevelNormal}
		v := verdicts[c.ID]
		switch {
		case v.attack:
			area.Status = LevelDanger
			area.Message = "Attack detected"
			if t := types[c.ID]; t != "" {
				area.Message = fmt.Sprintf("Possible %s attack detected", t)
			}
		case v.seen:
			area.Message = "No attack detected"
		}
		areas[i] = area
	}
	return areas
}

// ReadAttackLog parses the log at path. A missing log means nothing has been
// detected, so every area is normal.
func ReadAttackLog(path string) ([]Area, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return ParseAttackLog(""), nil
		}
		return nil, fmt.Errorf("failed to read attack log: %w", err)
	}
	return ParseAttackLog(string(data)), nil
}

// InDanger returns the areas currently flagged.
func InDanger(areas []Area) []Area {
	var out []Area
	for _, a := range areas {
		if a.Status == LevelDanger {
			out = append(out, a)
		}
	}
	return out
}

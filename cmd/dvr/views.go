package main

import (
	"fmt"
	"strconv"

	"dvr/internal/api"
	"dvr/internal/recorder"
)

var (
	recordingHeaders = []string{"ID", "Schedule", "Status", "Channel", "Program", "Started", "Size", "Policy"}
	recordingAligns  = []columnAlignment{alignRight, alignRight, alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft}
)

func buildScheduleRows(items []api.Schedule) [][]string {
	rows := make([][]string, 0, len(items))
	for _, s := range items {
		rows = append(rows, []string{
			strconv.FormatInt(s.ID, 10),
			s.Status,
			s.ChannelName,
			dash(s.ProgramTitle),
			displayTime(s.Start),
			displayTime(s.End),
			fmt.Sprintf("%d/%ds", s.StartPaddingSec, s.EndPaddingSec),
		})
	}
	return rows
}

func buildRecordingRows(items []api.Recording) [][]string {
	rows := make([][]string, 0, len(items))
	for _, r := range items {
		scheduleID := "-"
		if r.ScheduleID > 0 {
			scheduleID = strconv.FormatInt(r.ScheduleID, 10)
		}
		started := r.ActualStart
		if started == "" {
			started = r.ScheduledStart
		}
		rows = append(rows, []string{
			strconv.FormatInt(r.ID, 10),
			scheduleID,
			r.Status,
			r.ChannelName,
			dash(r.ProgramTitle),
			displayTime(started),
			formatBytes(r.SizeBytes),
			r.AutoDeletePolicy,
		})
	}
	return rows
}

func buildActiveRows(items []recorder.Progress) [][]string {
	rows := make([][]string, 0, len(items))
	for _, p := range items {
		rows = append(rows, []string{
			strconv.FormatInt(p.ScheduleID, 10),
			p.State,
			p.ChannelName,
			dash(p.ProgramTitle),
			displayDuration(p.ElapsedSeconds) + " / " + displayDuration(p.DurationSeconds),
			formatBytes(p.BytesWritten),
		})
	}
	return rows
}

func buildSourceRows(items []api.Source) [][]string {
	rows := make([][]string, 0, len(items))
	for _, s := range items {
		limit := "1"
		if s.MaxConnections != nil {
			limit = strconv.Itoa(*s.MaxConnections)
		}
		rows = append(rows, []string{s.ID, dash(s.Name), s.Kind, dash(s.BaseURL), limit})
	}
	return rows
}

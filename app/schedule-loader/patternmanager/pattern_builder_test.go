package patternmanager

import (
	"io"
	"log"
	"testing"

	"github.com/matryer/is"
)

func quietLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func makeStopTime(tripId, stopId string, sequence, arrival, departure int) *rawStopTime {
	return &rawStopTime{
		TripId:        tripId,
		StopId:        stopId,
		StopSequence:  sequence,
		ArrivalTime:   arrival,
		DepartureTime: departure,
	}
}

func makeTrip(tripId, routeId, serviceId string, directionId int) *rawTrip {
	return &rawTrip{
		TripId:      tripId,
		RouteId:     routeId,
		ServiceId:   serviceId,
		DirectionId: directionId,
	}
}

func TestBuildPatternModelGroupsBySignature(t *testing.T) {
	assert := is.New(t)
	f := &feed{
		trips: []*rawTrip{
			makeTrip("t1", "T1", "wk", 0),
			makeTrip("t2", "T1", "wk", 0),
			makeTrip("t3", "T1", "wk", 0),
			makeTrip("t4", "T1", "wk", 1),
		},
		stopTimes: []*rawStopTime{
			// t1 and t2 share the stop sequence, t3 skips a stop, t4 runs
			// the other direction
			makeStopTime("t1", "A", 1, 28800, 28800),
			makeStopTime("t1", "B", 2, 29100, 29160),
			makeStopTime("t1", "C", 3, 29400, 29400),
			makeStopTime("t2", "A", 1, 30600, 30600),
			makeStopTime("t2", "B", 2, 30900, 30960),
			makeStopTime("t2", "C", 3, 31200, 31200),
			makeStopTime("t3", "A", 1, 32400, 32400),
			makeStopTime("t3", "C", 2, 33000, 33000),
			makeStopTime("t4", "C", 1, 36000, 36000),
			makeStopTime("t4", "B", 2, 36300, 36300),
			makeStopTime("t4", "A", 3, 36600, 36600),
		},
	}

	model, err := buildPatternModel(quietLogger(), f)
	assert.NoErr(err)
	assert.Equal(len(model.patterns), 3)
	assert.Equal(len(model.trips), 4)

	patternByTrip := make(map[string]int64)
	for _, trip := range model.trips {
		patternByTrip[trip.TripId] = trip.PatternId
	}
	assert.Equal(patternByTrip["t1"], patternByTrip["t2"])
	assert.True(patternByTrip["t1"] != patternByTrip["t3"])
	assert.True(patternByTrip["t1"] != patternByTrip["t4"])

	// offsets are relative to each trip's start
	for _, ps := range model.patternStops {
		if ps.PatternId == patternByTrip["t1"] && ps.StopSequence == 2 {
			assert.Equal(ps.ArrivalOffset, 300)
			assert.Equal(ps.DepartureOffset, 360)
		}
	}

	// start times are the first stop's departure
	for _, trip := range model.trips {
		if trip.TripId == "t2" {
			assert.Equal(trip.StartTime, 30600)
		}
	}
}

func TestBuildPatternModelMedianOffsets(t *testing.T) {
	assert := is.New(t)
	f := &feed{
		trips: []*rawTrip{
			makeTrip("t1", "610", "wk", 0),
			makeTrip("t2", "610", "wk", 0),
			makeTrip("t3", "610", "wk", 0),
		},
		stopTimes: []*rawStopTime{
			makeStopTime("t1", "A", 1, 1000, 1000),
			makeStopTime("t1", "B", 2, 1290, 1290), // offset 290
			makeStopTime("t2", "A", 1, 2000, 2000),
			makeStopTime("t2", "B", 2, 2300, 2300), // offset 300
			makeStopTime("t3", "A", 1, 3000, 3000),
			makeStopTime("t3", "B", 2, 3900, 3900), // offset 900, an outlier
		},
	}

	model, err := buildPatternModel(quietLogger(), f)
	assert.NoErr(err)
	assert.Equal(len(model.patterns), 1)

	for _, ps := range model.patternStops {
		if ps.StopSequence == 2 {
			// the outlier does not drag the offset the way a mean would
			assert.Equal(ps.DepartureOffset, 300)
		}
	}
}

func TestMedian(t *testing.T) {
	tests := []struct {
		name   string
		values []int
		want   int
	}{
		{"single value", []int{120}, 120},
		{"odd count", []int{300, 900, 290}, 300},
		{"even count takes mean of middle two", []int{100, 200, 300, 400}, 250},
		{"even count truncates toward zero", []int{100, 201}, 150},
		{"negative offsets", []int{-10, -20}, -15},
		{"unsorted input", []int{500, 100, 300}, 300},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := median(tt.values); got != tt.want {
				t.Errorf("median(%v) = %d, want %d", tt.values, got, tt.want)
			}
		})
	}
}

func TestBuildPatternModelExcludesTripsWithoutStopTimes(t *testing.T) {
	assert := is.New(t)
	f := &feed{
		trips: []*rawTrip{
			makeTrip("t1", "T1", "wk", 0),
			makeTrip("ghost", "T1", "wk", 0),
		},
		stopTimes: []*rawStopTime{
			makeStopTime("t1", "A", 1, 28800, 28800),
			makeStopTime("t1", "B", 2, 29100, 29100),
		},
	}

	model, err := buildPatternModel(quietLogger(), f)
	assert.NoErr(err)
	assert.Equal(len(model.trips), 1)
	assert.Equal(model.trips[0].TripId, "t1")
}

func TestBuildPatternModelFailsWithNoUsableTrips(t *testing.T) {
	assert := is.New(t)
	f := &feed{
		trips: []*rawTrip{makeTrip("ghost", "T1", "wk", 0)},
	}
	_, err := buildPatternModel(quietLogger(), f)
	assert.True(err != nil)
}

func TestBuildPatternModelDeterministic(t *testing.T) {
	assert := is.New(t)
	build := func() *patternModel {
		f := &feed{
			trips: []*rawTrip{
				makeTrip("t1", "T1", "wk", 0),
				makeTrip("t2", "M20", "wk", 0),
				makeTrip("t3", "F1", "wk", 1),
			},
			stopTimes: []*rawStopTime{
				makeStopTime("t1", "A", 1, 1000, 1000),
				makeStopTime("t2", "B", 1, 2000, 2000),
				makeStopTime("t3", "C", 1, 3000, 3000),
			},
		}
		model, err := buildPatternModel(quietLogger(), f)
		assert.NoErr(err)
		return model
	}

	first := build()
	second := build()
	assert.Equal(len(first.patterns), len(second.patterns))
	for i := range first.patterns {
		assert.Equal(first.patterns[i].Id, second.patterns[i].Id)
		assert.Equal(first.patterns[i].RouteId, second.patterns[i].RouteId)
	}
	for i := range first.trips {
		assert.Equal(first.trips[i].PatternId, second.trips[i].PatternId)
	}
}

func TestBuildPatternModelNextDayTimesPreserved(t *testing.T) {
	assert := is.New(t)
	f := &feed{
		trips: []*rawTrip{makeTrip("owl", "N90", "wk", 0)},
		stopTimes: []*rawStopTime{
			// 25:30:00, a next-day departure on the prior service day
			makeStopTime("owl", "A", 1, 91800, 91800),
			makeStopTime("owl", "B", 2, 92100, 92100),
		},
	}

	model, err := buildPatternModel(quietLogger(), f)
	assert.NoErr(err)
	assert.Equal(model.trips[0].StartTime, 91800)
	for _, ps := range model.patternStops {
		if ps.StopSequence == 2 {
			assert.Equal(ps.DepartureOffset, 300)
		}
	}
}

func TestBuildPatternModelCircularRoute(t *testing.T) {
	assert := is.New(t)
	f := &feed{
		trips: []*rawTrip{makeTrip("loop", "L1", "wk", 0)},
		stopTimes: []*rawStopTime{
			makeStopTime("loop", "A", 1, 1000, 1000),
			makeStopTime("loop", "B", 2, 1300, 1300),
			makeStopTime("loop", "A", 3, 1600, 1600),
		},
	}

	model, err := buildPatternModel(quietLogger(), f)
	assert.NoErr(err)
	assert.Equal(len(model.patternStops), 3)

	// both calls at the terminus survive with distinct sequence numbers
	sequences := make(map[int]bool)
	for _, ps := range model.patternStops {
		assert.True(!sequences[ps.StopSequence])
		sequences[ps.StopSequence] = true
	}
}

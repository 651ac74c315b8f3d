// Command tracker replays an event-camera recording against a brightness
// panorama and estimates the camera rotation with an EKF.
package main

import (
	"flag"
	"io"
	"log"

	"github.com/banshee-data/rotation.report/internal/evcam"
	"github.com/banshee-data/rotation.report/internal/evcam/monitor"
	"github.com/banshee-data/rotation.report/internal/evcam/report"
	"github.com/banshee-data/rotation.report/internal/evcamdb"
)

var (
	eventsPath = flag.String("events", "", "Event text file (t x y p per line)")
	panoPath   = flag.String("map", "", "Equirectangular brightness panorama (PNG)")
	calibPath  = flag.String("calib", "", "Undistortion table file (optional; ideal pinhole if empty)")
	dbPath     = flag.String("db", "tracking.db", "SQLite database for session output")
	session    = flag.String("session", "replay", "Session name recorded in the database")
	plotPath   = flag.String("plot", "", "Write a trajectory PNG to this path")
	reportPath = flag.String("report", "", "Write an HTML session report to this path")

	sensorWidth  = flag.Int("width", 240, "Sensor width in pixels")
	sensorHeight = flag.Int("height", 180, "Sensor height in pixels")
	focal        = flag.Float64("focal", 200, "Focal length in pixels for the ideal pinhole table")
	batchSize    = flag.Int("batch", 500, "Events per EKF correction step")
)

func main() {
	flag.Parse()

	if *eventsPath == "" || *panoPath == "" {
		log.Fatal("both -events and -map are required")
	}

	pano, err := evcam.LoadPanoramaPNG(*panoPath)
	if err != nil {
		log.Fatalf("load panorama: %v", err)
	}
	grads := evcam.ComputeGradients(pano)
	log.Printf("loaded %dx%d panorama", pano.Width, pano.Height)

	var calib *evcam.Calibration
	if *calibPath != "" {
		calib, err = evcam.LoadCalibration(*calibPath, *sensorWidth, *sensorHeight)
		if err != nil {
			log.Fatalf("load calibration: %v", err)
		}
	} else {
		cx := float64(*sensorWidth-1) / 2
		cy := float64(*sensorHeight-1) / 2
		calib = evcam.NewPinholeCalibration(*sensorWidth, *sensorHeight, *focal, *focal, cx, cy)
		log.Printf("using ideal pinhole calibration (f=%.1fpx)", *focal)
	}

	stream, err := evcam.OpenEventFile(*eventsPath, *sensorWidth)
	if err != nil {
		log.Fatalf("open events: %v", err)
	}
	defer stream.Close()

	db, err := evcamdb.NewTrackDB(*dbPath)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()

	sessionID, err := db.CreateSession(*session, *sensorWidth, *sensorHeight, pano.Width, pano.Height)
	if err != nil {
		log.Fatalf("create session: %v", err)
	}
	log.Printf("session %s", sessionID)

	eventMap := evcam.NewEventMap(calib.Pixels())
	filter := evcam.NewRotationEKF(evcam.DefaultEKFConfig())
	plotter := monitor.NewTrajectoryPlotter()

	var startNanos int64 = -1
	var processed, skipped int

	for {
		batch, readErr := stream.ReadBatch(*batchSize)
		if readErr != nil && readErr != io.EOF {
			log.Fatalf("read events: %v", readErr)
		}
		if len(batch) > 0 {
			last := batch[len(batch)-1]
			if startNanos < 0 {
				startNanos = batch[0].UnixNanos
			}

			filter.PredictTo(last.UnixNanos)
			if err := filter.Correct(batch, eventMap, pano, calib, grads); err != nil {
				// A failed correction skips this cycle; the event map still
				// advances so later batches compare against fresh rotations.
				skipped++
				log.Printf("correction skipped: %v", err)
			}
			if err := eventMap.RecordBatch(batch, filter.Rotation()); err != nil {
				log.Fatalf("update event map: %v", err)
			}

			pose := evcamdb.Pose{
				UnixNanos:  last.UnixNanos,
				RotX:       filter.State.X,
				RotY:       filter.State.Y,
				RotZ:       filter.State.Z,
				EventCount: len(batch),
			}
			if err := db.InsertPose(sessionID, pose); err != nil {
				log.Fatalf("record pose: %v", err)
			}
			plotter.Add(float64(last.UnixNanos-startNanos)/1e9, filter.State)
			processed += len(batch)
		}
		if readErr == io.EOF {
			break
		}
	}

	log.Printf("processed %d events (%d corrections skipped)", processed, skipped)

	if *plotPath != "" {
		if err := plotter.SavePNG(*plotPath); err != nil {
			log.Fatalf("write plot: %v", err)
		}
		log.Printf("wrote trajectory plot to %s", *plotPath)
	}
	if *reportPath != "" {
		poses, err := db.Poses(sessionID)
		if err != nil {
			log.Fatalf("load poses: %v", err)
		}
		if err := report.WriteSessionFile(*reportPath, *session, poses); err != nil {
			log.Fatalf("write report: %v", err)
		}
		log.Printf("wrote session report to %s", *reportPath)
	}
}

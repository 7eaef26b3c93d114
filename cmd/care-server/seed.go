package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/igabay/care/internal/config"
	"github.com/igabay/care/internal/domain/actor"
	"github.com/igabay/care/internal/domain/appointment"
	"github.com/igabay/care/internal/domain/assignment"
	"github.com/igabay/care/internal/domain/history"
	"github.com/igabay/care/internal/domain/notification"
	"github.com/igabay/care/internal/platform/db"
	"github.com/igabay/care/internal/platform/lock"
)

// seedCmd populates the database with fake bookings in assorted workflow
// states so the API has data to browse in development.
func seedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Populate the database with fake development data",
		RunE: func(cmd *cobra.Command, args []string) error {
			count, _ := cmd.Flags().GetInt("count")
			return runSeed(count)
		},
	}
	cmd.Flags().Int("count", 25, "Number of appointments to create")
	return cmd
}

func runSeed(count int) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return err
	}
	defer pool.Close()

	tx := db.NewTransactor(pool)
	histSvc := history.NewService(history.NewRepo(pool))
	dispatcher := notification.NewDispatcher(notification.NewRepo(pool))
	apptSvc := appointment.NewService(appointment.NewRepo(pool), histSvc, dispatcher, tx, lock.NoopLocker{})
	coordinator := assignment.NewCoordinator(assignment.NewRepo(pool), apptSvc, tx)

	faker := gofakeit.New(0)

	clinics := make([]uuid.UUID, 3)
	for i := range clinics {
		clinics[i] = uuid.New()
	}
	doctors := make([]uuid.UUID, 8)
	for i := range doctors {
		doctors[i] = uuid.New()
	}

	types := []string{"consultation", "follow_up", "checkup", "emergency"}

	created := 0
	for i := 0; i < count; i++ {
		patient := actor.Ref{ID: uuid.New(), Type: actor.Patient}
		clinicID := clinics[faker.Number(0, len(clinics)-1)]
		clinic := actor.Ref{ID: clinicID, Type: actor.Clinic}
		doctorID := doctors[faker.Number(0, len(doctors)-1)]
		doctor := actor.Ref{ID: doctorID, Type: actor.Doctor}

		notes := faker.Sentence(8)
		appt := &appointment.Appointment{
			PatientID: patient.ID,
			ClinicID:  clinicID,
			Date:      time.Now().AddDate(0, 0, faker.Number(1, 30)),
			Time:      fmt.Sprintf("%02d:%02d", faker.Number(8, 17), faker.Number(0, 1)*30),
			Type:      types[faker.Number(0, len(types)-1)],
			Notes:     &notes,
		}
		if err := apptSvc.Create(ctx, appt, patient); err != nil {
			return fmt.Errorf("seed appointment %d: %w", i, err)
		}
		created++

		// Walk a share of the bookings further along the workflow.
		stage := faker.Number(0, 4)
		if stage == 0 {
			continue
		}

		asg, err := coordinator.Assign(ctx, appt.ID, clinicID, doctorID, clinic, nil)
		if errors.Is(err, appointment.ErrSlotUnavailable) {
			continue
		}
		if err != nil {
			return fmt.Errorf("seed assignment %d: %w", i, err)
		}
		if stage == 1 {
			continue
		}

		if _, err := coordinator.Respond(ctx, asg.ID, doctorID, true, nil); err != nil {
			return fmt.Errorf("seed accept %d: %w", i, err)
		}
		if stage == 2 {
			continue
		}

		if _, err := apptSvc.Transition(ctx, appt.ID, appointment.StatusInProgress, doctor, nil); err != nil {
			return fmt.Errorf("seed start %d: %w", i, err)
		}
		if stage == 3 {
			continue
		}

		if _, err := apptSvc.Transition(ctx, appt.ID, appointment.StatusCompleted, doctor, nil); err != nil {
			return fmt.Errorf("seed complete %d: %w", i, err)
		}
	}

	fmt.Printf("Created %d appointment(s).\n", created)
	return nil
}

package postgres

const (
	qRoomGet = `
		SELECT id, party_a_id, party_b_id, start_time, end_time
		FROM rooms
		WHERE id = $1`

	qRoomCreate = `
		INSERT INTO rooms (party_a_id, party_b_id, start_time, end_time)
		VALUES ($1, $2, $3, $4)
		RETURNING id`

	qRoomDelete = `DELETE FROM rooms WHERE id = $1`

	qRoomListActive = `
		SELECT r.id, r.party_a_id, r.party_b_id, r.start_time, r.end_time
		FROM rooms r
		WHERE (r.start_time <= $1 AND r.end_time >= $1)
		   OR EXISTS (
				SELECT 1 FROM consultations c
				WHERE c.room_id = r.id
				  AND c.end_date = r.end_time
				  AND c.status NOT IN ('ENDED', 'CANCELLED'))
		ORDER BY r.end_time ASC`

	qBookingGet = `
		SELECT id, party_a_id, party_b_id, room_id, status, reason, start_date, end_date
		FROM consultations
		WHERE id = $1`

	qBookingByRoomAndEnd = `
		SELECT id, party_a_id, party_b_id, room_id, status, reason, start_date, end_date
		FROM consultations
		WHERE room_id = $1 AND end_date = $2
		ORDER BY id
		LIMIT 1`

	qBookingSave = `
		UPDATE consultations
		SET room_id = $2, status = $3, reason = $4, updated_at = now()
		WHERE id = $1`

	qMessageInsert = `
		INSERT INTO chat_messages (room_id, sender, sender_role, content, type, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`
)
